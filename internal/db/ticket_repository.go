package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/subsmarket/internal/models"
	"github.com/example/subsmarket/pkg/database"
)

const (
	unreadBySellerField   = "unreadBySellerCount"
	unreadByCustomerField = "unreadByCustomerCount"
)

type firestoreTicketRepository struct {
	client *firestore.Client
}

// NewFirestoreTicketRepository creates a new TicketRepository.
func NewFirestoreTicketRepository(client *firestore.Client) TicketRepository {
	return &firestoreTicketRepository{client: client}
}

func (r *firestoreTicketRepository) messages(ticketID string) *firestore.CollectionRef {
	return r.client.Collection(ticketsCollection).Doc(ticketID).Collection(messagesCollection)
}

// preview is the lastMessage text shown in ticket lists.
func preview(msg *models.ChatMessage) string {
	if msg.Text != "" {
		return msg.Text
	}
	switch msg.Type {
	case models.MessageMediaResponse:
		return "[imagem]"
	case models.MessageMediaRequest:
		return "[solicitação de imagem]"
	}
	return ""
}

// Create writes the ticket and its seed message atomically. The ticket's preview
// fields are taken from the seed.
func (r *firestoreTicketRepository) Create(ctx context.Context, ticket *models.Ticket, seed *models.ChatMessage) (string, error) {
	ref := r.client.Collection(ticketsCollection).NewDoc()
	ticket.ID = ref.ID
	if seed != nil {
		ticket.LastMessage = preview(seed)
		ticket.LastMessageAt = seed.Timestamp
	}

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(ref, ticket); err != nil {
			return err
		}
		if seed == nil {
			return nil
		}
		msgRef := ref.Collection(messagesCollection).NewDoc()
		seed.ID = msgRef.ID
		return tx.Create(msgRef, seed)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create ticket: %w", err)
	}
	return ref.ID, nil
}

func (r *firestoreTicketRepository) GetByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	if ticketID == "" {
		return nil, errors.New("ticketID cannot be empty for GetByID operation")
	}
	snap, err := r.client.Collection(ticketsCollection).Doc(ticketID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("ticket with ID '%s' not found: %w", ticketID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ticket with ID '%s': %w", ticketID, err)
	}
	var t models.Ticket
	if err := snap.DataTo(&t); err != nil {
		return nil, fmt.Errorf("failed to decode ticket '%s': %w", ticketID, err)
	}
	t.ID = snap.Ref.ID
	return &t, nil
}

// ListForUser returns tickets where the user is either party, most recently
// active first.
func (r *firestoreTicketRepository) ListForUser(ctx context.Context, userID string) ([]*models.Ticket, error) {
	seen := make(map[string]bool)
	var tickets []*models.Ticket
	for _, field := range []string{"customerId", "sellerId"} {
		iter := r.client.Collection(ticketsCollection).Where(field, "==", userID).Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, fmt.Errorf("failed to iterate tickets for '%s': %w", userID, err)
			}
			if seen[doc.Ref.ID] {
				continue
			}
			var t models.Ticket
			if err := doc.DataTo(&t); err != nil {
				iter.Stop()
				return nil, fmt.Errorf("failed to decode ticket '%s': %w", doc.Ref.ID, err)
			}
			t.ID = doc.Ref.ID
			seen[t.ID] = true
			tickets = append(tickets, &t)
		}
		iter.Stop()
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].LastMessageAt.After(tickets[j].LastMessageAt)
	})
	return tickets, nil
}

// counterUpdates turns a CounterDelta into field updates. A reset wins over an
// increment on the same counter.
func counterUpdates(delta models.CounterDelta) []firestore.Update {
	var updates []firestore.Update
	switch {
	case delta.ResetSeller:
		updates = append(updates, firestore.Update{Path: unreadBySellerField, Value: 0})
	case delta.SellerIncrement > 0:
		updates = append(updates, firestore.Update{Path: unreadBySellerField, Value: firestore.Increment(delta.SellerIncrement)})
	}
	switch {
	case delta.ResetCustomer:
		updates = append(updates, firestore.Update{Path: unreadByCustomerField, Value: 0})
	case delta.CustomerIncrement > 0:
		updates = append(updates, firestore.Update{Path: unreadByCustomerField, Value: firestore.Increment(delta.CustomerIncrement)})
	}
	return updates
}

// AddMessage appends msg and updates the ticket preview and counters in one
// transaction.
func (r *firestoreTicketRepository) AddMessage(ctx context.Context, ticketID string, msg *models.ChatMessage, delta models.CounterDelta) (string, error) {
	ticketRef := r.client.Collection(ticketsCollection).Doc(ticketID)
	msgRef := ticketRef.Collection(messagesCollection).NewDoc()

	updates := append([]firestore.Update{
		{Path: "lastMessage", Value: preview(msg)},
		{Path: "lastMessageAt", Value: msg.Timestamp},
	}, counterUpdates(delta)...)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Update(ticketRef, updates); err != nil {
			return err
		}
		return tx.Create(msgRef, msg)
	})
	if err != nil {
		return "", fmt.Errorf("failed to add message to ticket '%s': %w", ticketID, database.MapError(err))
	}
	msg.ID = msgRef.ID
	return msgRef.ID, nil
}

func (r *firestoreTicketRepository) FlagManualDelivery(ctx context.Context, ticketID string, flag bool) error {
	_, err := r.client.Collection(ticketsCollection).Doc(ticketID).Update(ctx, []firestore.Update{
		{Path: "needsManualDelivery", Value: flag},
	})
	if err != nil {
		return fmt.Errorf("failed to flag ticket '%s': %w", ticketID, database.MapError(err))
	}
	return nil
}

// ResetUnread zeroes the seller's or the customer's unread counter.
func (r *firestoreTicketRepository) ResetUnread(ctx context.Context, ticketID string, seller bool) error {
	field := unreadByCustomerField
	if seller {
		field = unreadBySellerField
	}
	_, err := r.client.Collection(ticketsCollection).Doc(ticketID).Update(ctx, []firestore.Update{{Path: field, Value: 0}})
	if err != nil {
		return fmt.Errorf("failed to reset %s on ticket '%s': %w", field, ticketID, database.MapError(err))
	}
	return nil
}

func decodeMessages(iter *firestore.DocumentIterator) ([]*models.ChatMessage, error) {
	defer iter.Stop()
	msgs := []*models.ChatMessage{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var m models.ChatMessage
		if err := doc.DataTo(&m); err != nil {
			return nil, fmt.Errorf("failed to decode message '%s': %w", doc.Ref.ID, err)
		}
		m.ID = doc.Ref.ID
		msgs = append(msgs, &m)
	}
	return msgs, nil
}

// ListMessages returns the thread in timestamp order.
func (r *firestoreTicketRepository) ListMessages(ctx context.Context, ticketID string) ([]*models.ChatMessage, error) {
	msgs, err := decodeMessages(r.messages(ticketID).OrderBy("timestamp", firestore.Asc).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages of ticket '%s': %w", ticketID, err)
	}
	return msgs, nil
}

// ListenMessages streams the ordered thread until ctx is cancelled.
func (r *firestoreTicketRepository) ListenMessages(ctx context.Context, ticketID string, fn func([]*models.ChatMessage)) error {
	it := r.messages(ticketID).OrderBy("timestamp", firestore.Asc).Snapshots(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, iterator.Done) {
				return nil
			}
			return fmt.Errorf("message listener on ticket '%s' failed: %w", ticketID, err)
		}
		msgs, err := decodeMessages(snap.Documents)
		if err != nil {
			return fmt.Errorf("failed to read message snapshot: %w", err)
		}
		fn(msgs)
	}
}
