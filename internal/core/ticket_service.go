package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/models"
)

// MaxMediaBytes is the largest decoded image accepted in a media response.
const MaxMediaBytes = 5 * 1024 * 1024

// TicketView is a ticket as shown to one viewer.
type TicketView struct {
	Ticket              *models.Ticket        `json:"ticket"`
	Messages            []*models.ChatMessage `json:"messages"`
	ExpiresAt           time.Time             `json:"expiresAt"`
	Expired             bool                  `json:"expired"`
	PendingMedia        bool                  `json:"pendingMedia"`
	ReadOnly            bool                  `json:"readOnly"`
	CounterpartPresence *PresenceInfo         `json:"counterpartPresence,omitempty"`
}

type ticketService struct {
	tickets       db.TicketRepository
	subscriptions db.SubscriptionRepository
	users         db.UserRepository
	checkout      CheckoutService
	notifications NotificationService
	ackDelay      time.Duration
	afterFunc     func(time.Duration, func())
	logger        *zap.Logger
	now           func() time.Time
}

// NewTicketService creates the chat service. ackDelay is how long after a
// media response the automatic acknowledgement is posted.
func NewTicketService(tickets db.TicketRepository, subscriptions db.SubscriptionRepository, users db.UserRepository,
	checkout CheckoutService, notifications NotificationService, ackDelay time.Duration, logger *zap.Logger) TicketService {
	return &ticketService{
		tickets:       tickets,
		subscriptions: subscriptions,
		users:         users,
		checkout:      checkout,
		notifications: notifications,
		ackDelay:      ackDelay,
		afterFunc:     func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		logger:        logger,
		now:           time.Now,
	}
}

// PendingMedia reports whether the latest image request in messages is still
// unanswered.
func PendingMedia(messages []*models.ChatMessage) bool {
	for i := len(messages) - 1; i >= 0; i-- {
		switch messages[i].Type {
		case models.MessageMediaResponse:
			return false
		case models.MessageMediaRequest:
			return true
		}
	}
	return false
}

// DecodeMediaPayload strips an optional data URL prefix and checks the
// decoded size. It returns the bare base64 payload.
func DecodeMediaPayload(payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return "", fmt.Errorf("%w: malformed data URL", ErrInvalidMessage)
		}
		payload = payload[idx+1:]
	}
	if payload == "" {
		return "", fmt.Errorf("%w: media payload is required", ErrInvalidMessage)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxMediaBytes+2 {
		return "", ErrMediaTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: payload is not valid base64", ErrInvalidMessage)
	}
	if len(raw) > MaxMediaBytes {
		return "", ErrMediaTooLarge
	}
	return payload, nil
}

// access loads the ticket and checks the user may see it. Admins may read
// any ticket but never write to it.
func (s *ticketService) access(ctx context.Context, user *models.User, ticketID string) (*models.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrTicketNotFound, ticketID)
		}
		return nil, err
	}
	if !ticket.IsParticipant(user.ID) && !user.IsAdmin() {
		return nil, fmt.Errorf("%w: '%s'", ErrTicketNotFound, ticketID)
	}
	return ticket, nil
}

func (s *ticketService) expiry(ctx context.Context, ticket *models.Ticket) (time.Time, bool, error) {
	sub, err := s.subscriptions.Get(ctx, ticket.CustomerID, ticket.UserSubscriptionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			// A ticket without its subscription cannot be renewed; keep it open.
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to load subscription of ticket '%s': %w", ticket.ID, err)
	}
	return sub.EndDate, sub.Expired(s.now()), nil
}

// List returns the tickets where the user is buyer or seller, newest activity first.
func (s *ticketService) List(ctx context.Context, user *models.User) ([]*models.Ticket, error) {
	return s.tickets.ListForUser(ctx, user.ID)
}

// Open loads the ticket with its messages and clears the viewer's unread counter.
func (s *ticketService) Open(ctx context.Context, user *models.User, ticketID string) (*TicketView, error) {
	ticket, err := s.access(ctx, user, ticketID)
	if err != nil {
		return nil, err
	}
	messages, err := s.tickets.ListMessages(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	expiresAt, expired, err := s.expiry(ctx, ticket)
	if err != nil {
		return nil, err
	}

	view := &TicketView{
		Ticket:    ticket,
		Messages:  messages,
		ExpiresAt: expiresAt,
		Expired:   expired,
		ReadOnly:  !ticket.IsParticipant(user.ID),
	}
	if view.ReadOnly {
		return view, nil
	}

	isSeller := user.ID == ticket.SellerID
	if err := s.tickets.ResetUnread(ctx, ticket.ID, isSeller); err != nil {
		s.logger.Warn("Failed to reset unread counter", zap.String("ticketId", ticket.ID), zap.String("userId", user.ID), zap.Error(err))
	} else if isSeller {
		ticket.UnreadBySellerCount = 0
	} else {
		ticket.UnreadByCustomerCount = 0
	}
	view.PendingMedia = !isSeller && PendingMedia(messages)

	counterpart, err := s.users.GetByID(ctx, ticket.CounterpartOf(user.ID))
	if err == nil {
		p := Presence(counterpart.LastSeen, s.now())
		view.CounterpartPresence = &p
	}
	return view, nil
}

// SendMessage appends a message from a participant and notifies the other side.
func (s *ticketService) SendMessage(ctx context.Context, user *models.User, ticketID string, req models.SendMessageRequest) (*models.ChatMessage, error) {
	ticket, err := s.access(ctx, user, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsParticipant(user.ID) {
		return nil, fmt.Errorf("%w: administrators cannot post in tickets", ErrForbidden)
	}
	if _, expired, err := s.expiry(ctx, ticket); err != nil {
		return nil, err
	} else if expired {
		return nil, ErrTicketExpired
	}

	isSeller := user.ID == ticket.SellerID
	msg := &models.ChatMessage{
		SenderID:   user.ID,
		SenderName: user.DisplayName,
		Text:       strings.TrimSpace(req.Text),
		Timestamp:  s.now().UTC(),
		Type:       req.Type,
	}
	switch req.Type {
	case models.MessageText:
		if msg.Text == "" {
			return nil, fmt.Errorf("%w: text is required", ErrInvalidMessage)
		}
	case models.MessageMediaRequest:
		if !isSeller {
			return nil, fmt.Errorf("%w: only the seller can request an image", ErrForbidden)
		}
		if msg.Text == "" {
			msg.Text = "O vendedor solicitou uma imagem."
		}
	case models.MessageMediaResponse:
		if isSeller {
			return nil, fmt.Errorf("%w: only the buyer can send an image", ErrForbidden)
		}
		payload, err := DecodeMediaPayload(req.Payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = payload
	default:
		return nil, fmt.Errorf("%w: unknown type '%s'", ErrInvalidMessage, req.Type)
	}

	delta := models.CounterDelta{CustomerIncrement: 1}
	if !isSeller {
		delta = models.CounterDelta{SellerIncrement: 1}
	}
	id, err := s.tickets.AddMessage(ctx, ticket.ID, msg, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to add message to ticket '%s': %w", ticket.ID, err)
	}
	msg.ID = id

	s.notifyCounterpart(ctx, ticket, user, msg)
	if msg.Type == models.MessageMediaResponse {
		s.scheduleMediaAck(ticket)
	}
	return msg, nil
}

func (s *ticketService) notifyCounterpart(ctx context.Context, ticket *models.Ticket, sender *models.User, msg *models.ChatMessage) {
	counterpart, err := s.users.GetByID(ctx, ticket.CounterpartOf(sender.ID))
	if err != nil {
		s.logger.Warn("Counterpart not found for ticket notification", zap.String("ticketId", ticket.ID), zap.Error(err))
		return
	}
	preview := msg.Text
	if msg.Type == models.MessageMediaResponse {
		preview = "[imagem]"
	}
	if err := s.notifications.Enqueue(ctx, models.NotificationTicket, counterpart.PhoneNumber, map[string]string{
		"cliente":   counterpart.DisplayName,
		"remetente": sender.DisplayName,
		"produto":   ticket.ServiceName + " - " + ticket.PlanName,
		"mensagem":  preview,
		"ticket":    ticket.ID,
	}); err != nil {
		s.logger.Warn("Failed to enqueue ticket notification", zap.String("ticketId", ticket.ID), zap.Error(err))
	}
}

// scheduleMediaAck posts an automatic acknowledgement on the seller's behalf
// after ackDelay. Scheduling is in-process and does not survive a restart.
func (s *ticketService) scheduleMediaAck(ticket *models.Ticket) {
	s.afterFunc(s.ackDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ack := &models.ChatMessage{
			SenderID:   ticket.SellerID,
			SenderName: ticket.SellerName,
			Text:       "Imagem recebida! Vou analisar e já te respondo.",
			Timestamp:  s.now().UTC(),
			Type:       models.MessageText,
		}
		if _, err := s.tickets.AddMessage(ctx, ticket.ID, ack, models.CounterDelta{CustomerIncrement: 1}); err != nil {
			s.logger.Warn("Failed to post media acknowledgement", zap.String("ticketId", ticket.ID), zap.Error(err))
		}
	})
}

// StartRenewal opens a renewal checkout for the ticket's subscription.
func (s *ticketService) StartRenewal(ctx context.Context, user *models.User, ticketID string) (*CheckoutResult, error) {
	ticket, err := s.access(ctx, user, ticketID)
	if err != nil {
		return nil, err
	}
	return s.checkout.StartRenewal(ctx, user, ticket)
}

// Stream pushes the message list to fn on every change until ctx ends.
func (s *ticketService) Stream(ctx context.Context, user *models.User, ticketID string, fn func([]*models.ChatMessage)) error {
	ticket, err := s.access(ctx, user, ticketID)
	if err != nil {
		return err
	}
	return s.tickets.ListenMessages(ctx, ticket.ID, fn)
}
