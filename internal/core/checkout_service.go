package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/gateway/pix"
	"github.com/example/subsmarket/internal/models"
)

const (
	// SubscriptionPeriod is the validity window bought by one payment.
	SubscriptionPeriod = 30 * 24 * time.Hour
	// fulfillmentTimeout bounds one fulfilment run and the lifetime of its
	// cache guard key.
	fulfillmentTimeout = 2 * time.Minute
	failureTimeout     = 30 * time.Second
	systemSenderID     = "system"
	systemSenderName   = "Sistema"
)

// Quote is the price of a plan after an optional coupon.
type Quote struct {
	PlanID        string  `json:"planId"`
	OriginalPrice float64 `json:"originalPrice"`
	FinalPrice    float64 `json:"finalPrice"`
	Discount      float64 `json:"discount"`
	CouponCode    string  `json:"couponCode,omitempty"`
	AmountCents   int64   `json:"amountCents"`
}

// CheckoutResult is what callers need to drive the payment screen.
type CheckoutResult struct {
	CheckoutID    string  `json:"checkoutId"`
	Kind          string  `json:"kind"`
	Status        string  `json:"status"`
	FinalPrice    float64 `json:"finalPrice"`
	AmountCents   int64   `json:"amountCents"`
	PaymentMethod string  `json:"paymentMethod"`
	QRCode        string  `json:"qrCode,omitempty"`
	QRCodeBase64  string  `json:"qrCodeBase64,omitempty"`
	TicketID      string  `json:"ticketId,omitempty"`
}

// CheckoutDeps groups the collaborators of the checkout workflow.
type CheckoutDeps struct {
	Users         db.UserRepository
	Services      db.ServiceRepository
	Plans         db.PlanRepository
	Deliverables  db.DeliverableRepository
	Coupons       db.CouponRepository
	Subscriptions db.SubscriptionRepository
	Tickets       db.TicketRepository
	Checkouts     db.CheckoutRepository
	Configs       db.ConfigRepository
	Notifications NotificationService
	Gateway       PaymentGateway
	Locker        Locker
	Sealer        Sealer
	Alerter       Alerter
}

type checkoutService struct {
	CheckoutDeps
	envToken     string
	pollInterval time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewCheckoutService creates the checkout workflow. envToken is the PIX
// credential used when configs/payment carries none.
func NewCheckoutService(deps CheckoutDeps, envToken string, pollInterval time.Duration, logger *zap.Logger) CheckoutService {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &checkoutService{
		CheckoutDeps: deps,
		envToken:     envToken,
		pollInterval: pollInterval,
		logger:       logger,
		now:          time.Now,
	}
}

// ApplyDiscount returns price reduced by pct percent, rounded to cents.
func ApplyDiscount(price, pct float64) float64 {
	final := price * (1 - pct/100)
	if final < 0 {
		final = 0
	}
	return math.Round(final*100) / 100
}

// ToCents converts a price to minor units.
func ToCents(price float64) int64 {
	return int64(math.Round(price * 100))
}

// PaymentMethodLabel describes how a purchase was paid.
func PaymentMethodLabel(couponCode string, charged bool) string {
	switch {
	case !charged:
		return "Cupom " + couponCode
	case couponCode != "":
		return "PIX + Cupom " + couponCode
	}
	return "PIX"
}

func formatBRL(v float64) string {
	return "R$ " + strings.Replace(strconv.FormatFloat(v, 'f', 2, 64), ".", ",", 1)
}

// couponDiscount looks code up in the coupons collection, then in the
// enabled special coupons that apply to serviceID.
func (s *checkoutService) couponDiscount(ctx context.Context, code, serviceID string) (float64, error) {
	coupon, err := s.Coupons.Get(ctx, code)
	if err == nil {
		return coupon.DiscountPercentage, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return 0, err
	}

	special, err := s.Configs.SpecialCoupons(ctx)
	if err != nil {
		return 0, err
	}
	if special.Enabled {
		for _, c := range special.Coupons {
			if NormalizeCouponCode(c.Code) == code && c.AppliesTo(serviceID) {
				return c.DiscountPercentage, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: '%s'", ErrCouponNotFound, code)
}

func (s *checkoutService) quote(ctx context.Context, plan *models.Plan, couponCode string) (*Quote, error) {
	q := &Quote{
		PlanID:        plan.ID,
		OriginalPrice: plan.Price,
		FinalPrice:    plan.Price,
		AmountCents:   ToCents(plan.Price),
	}
	code := NormalizeCouponCode(couponCode)
	if code == "" {
		return q, nil
	}
	if !ValidCouponCode(code) {
		return q, fmt.Errorf("%w: '%s'", ErrInvalidCoupon, couponCode)
	}
	pct, err := s.couponDiscount(ctx, code, plan.ServiceID)
	if err != nil {
		return q, err
	}
	q.CouponCode = code
	q.FinalPrice = ApplyDiscount(plan.Price, pct)
	q.Discount = math.Round((plan.Price-q.FinalPrice)*100) / 100
	q.AmountCents = ToCents(q.FinalPrice)
	return q, nil
}

func (s *checkoutService) getPlan(ctx context.Context, planID string) (*models.Plan, error) {
	plan, err := s.Plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrPlanNotFound, planID)
		}
		return nil, err
	}
	return plan, nil
}

// Quote prices a plan. On coupon errors the returned quote still carries the
// original price.
func (s *checkoutService) Quote(ctx context.Context, planID, couponCode string) (*Quote, error) {
	plan, err := s.getPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return s.quote(ctx, plan, couponCode)
}

// paymentToken resolves the PIX credential: configs/payment first, then env.
func (s *checkoutService) paymentToken(ctx context.Context) (string, error) {
	cfg, err := s.Configs.Payment(ctx)
	if err != nil {
		return "", err
	}
	if cfg.APIToken != "" {
		token, err := s.Sealer.Open(cfg.APIToken)
		if err != nil {
			return "", fmt.Errorf("failed to open payment token: %w", err)
		}
		return token, nil
	}
	if s.envToken == "" {
		return "", ErrPaymentNotConfigured
	}
	return s.envToken, nil
}

func paymentError(err error) error {
	switch {
	case errors.Is(err, pix.ErrNotConfigured):
		return ErrPaymentNotConfigured
	case errors.Is(err, pix.ErrGateway):
		return fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	return err
}

func resultOf(c *models.Checkout) *CheckoutResult {
	return &CheckoutResult{
		CheckoutID:    c.ID,
		Kind:          c.Kind,
		Status:        c.Status,
		FinalPrice:    c.FinalPrice,
		AmountCents:   c.AmountCents,
		PaymentMethod: PaymentMethodLabel(c.CouponCode, c.AmountCents > 0),
		QRCode:        c.QRCode,
		QRCodeBase64:  c.QRCodeBase64,
		TicketID:      c.TicketID,
	}
}

// open stores the checkout and either charges it or fulfils it right away
// when nothing is owed.
func (s *checkoutService) open(ctx context.Context, checkout *models.Checkout) (*CheckoutResult, error) {
	now := s.now().UTC()
	checkout.Status = models.CheckoutPending
	checkout.CreatedAt = now
	checkout.UpdatedAt = now

	if checkout.AmountCents <= 0 {
		checkout.ID = "free-" + uuid.NewString()
		if _, err := s.Checkouts.Create(ctx, checkout); err != nil {
			return nil, err
		}
		return s.fulfil(ctx, checkout.ID)
	}

	token, err := s.paymentToken(ctx)
	if err != nil {
		return nil, err
	}
	charge, err := s.Gateway.CreateCharge(ctx, token, checkout.AmountCents)
	if err != nil {
		s.logger.Error("PIX charge failed", zap.String("userId", checkout.UserID), zap.Int64("amountCents", checkout.AmountCents), zap.Error(err))
		return nil, paymentError(err)
	}
	checkout.ID = charge.ID
	checkout.QRCode = charge.QRCode
	checkout.QRCodeBase64 = charge.QRCodeBase64
	if _, err := s.Checkouts.Create(ctx, checkout); err != nil {
		return nil, err
	}
	s.logger.Info("Checkout opened", zap.String("checkoutId", checkout.ID), zap.String("kind", checkout.Kind), zap.Int64("amountCents", checkout.AmountCents))
	return resultOf(checkout), nil
}

// Start begins a purchase of planID.
func (s *checkoutService) Start(ctx context.Context, buyer *models.User, req models.CheckoutRequest) (*CheckoutResult, error) {
	plan, err := s.getPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if req.ServiceID != "" && plan.ServiceID != req.ServiceID {
		return nil, fmt.Errorf("%w: plan '%s' is not offered for service '%s'", ErrPlanNotFound, plan.ID, req.ServiceID)
	}
	q, err := s.quote(ctx, plan, req.CouponCode)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, &models.Checkout{
		Kind:          models.CheckoutPurchase,
		UserID:        buyer.ID,
		ServiceID:     plan.ServiceID,
		PlanID:        plan.ID,
		CouponCode:    q.CouponCode,
		OriginalPrice: q.OriginalPrice,
		FinalPrice:    q.FinalPrice,
		AmountCents:   q.AmountCents,
	})
}

// StartRenewal charges the subscription price again for the ticket's purchase.
func (s *checkoutService) StartRenewal(ctx context.Context, buyer *models.User, ticket *models.Ticket) (*CheckoutResult, error) {
	if ticket.CustomerID != buyer.ID {
		return nil, fmt.Errorf("%w: only the buyer can renew", ErrForbidden)
	}
	sub, err := s.Subscriptions.Get(ctx, ticket.CustomerID, ticket.UserSubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Price <= 0 {
		return nil, ErrCannotRenewFree
	}
	return s.open(ctx, &models.Checkout{
		Kind:          models.CheckoutRenewal,
		UserID:        buyer.ID,
		ServiceID:     sub.ServiceID,
		PlanID:        sub.PlanID,
		TicketID:      ticket.ID,
		OriginalPrice: sub.Price,
		FinalPrice:    sub.Price,
		AmountCents:   ToCents(sub.Price),
	})
}

func (s *checkoutService) ownCheckout(ctx context.Context, buyer *models.User, checkoutID string) (*models.Checkout, error) {
	c, err := s.Checkouts.GetByID(ctx, checkoutID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrCheckoutNotFound, checkoutID)
		}
		return nil, err
	}
	if c.UserID != buyer.ID && !buyer.IsAdmin() {
		return nil, fmt.Errorf("%w: '%s'", ErrCheckoutNotFound, checkoutID)
	}
	return c, nil
}

// Status polls the provider once for a pending checkout and fulfils it when
// the payment is confirmed.
func (s *checkoutService) Status(ctx context.Context, buyer *models.User, checkoutID string) (*CheckoutResult, error) {
	c, err := s.ownCheckout(ctx, buyer, checkoutID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CheckoutPending {
		if c.Status == models.CheckoutFailed {
			return resultOf(c), ErrFulfillmentFailed
		}
		return resultOf(c), nil
	}

	token, err := s.paymentToken(ctx)
	if err != nil {
		return nil, err
	}
	status, err := s.Gateway.GetStatus(ctx, token, c.ID)
	if err != nil {
		return nil, paymentError(err)
	}
	if status != pix.StatusPaid {
		return resultOf(c), nil
	}
	s.logger.Info("Payment confirmed", zap.String("checkoutId", c.ID))
	return s.fulfil(ctx, c.ID)
}

// AwaitPayment polls until the checkout leaves pending or ctx ends. There is
// no overall timeout; callers bound the wait with their own context.
func (s *checkoutService) AwaitPayment(ctx context.Context, buyer *models.User, checkoutID string) (*CheckoutResult, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		res, err := s.Status(ctx, buyer, checkoutID)
		if err != nil {
			return res, err
		}
		if res.Status != models.CheckoutPending {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-ticker.C:
		}
	}
}

// fulfil runs at most once per checkout. The cache key only stops concurrent
// callers cheaply; the Firestore pending->fulfilling transition is the guard.
// The run ignores the caller's cancellation and is bounded by fulfillmentTimeout.
func (s *checkoutService) fulfil(ctx context.Context, checkoutID string) (*CheckoutResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fulfillmentTimeout)
	defer cancel()

	guardKey := "fulfillment:" + checkoutID
	acquired, err := s.Locker.SetNX(ctx, guardKey, s.now().UTC().Format(time.RFC3339), fulfillmentTimeout)
	if err != nil {
		s.logger.Warn("Fulfillment lock unavailable, relying on Firestore guard", zap.String("checkoutId", checkoutID), zap.Error(err))
		acquired = true
	}
	if !acquired {
		c, err := s.Checkouts.GetByID(ctx, checkoutID)
		if err != nil {
			return nil, err
		}
		return resultOf(c), nil
	}

	checkout, err := s.Checkouts.BeginFulfillment(ctx, checkoutID, s.now().UTC())
	if err != nil {
		if errors.Is(err, db.ErrConflict) {
			c, getErr := s.Checkouts.GetByID(ctx, checkoutID)
			if getErr != nil {
				return nil, getErr
			}
			return resultOf(c), nil
		}
		// Nothing was written, so the next poll may try again.
		if delErr := s.Locker.Delete(ctx, guardKey); delErr != nil {
			s.logger.Warn("Failed to release fulfillment lock", zap.String("checkoutId", checkoutID), zap.Error(delErr))
		}
		s.logger.Error("Failed to begin fulfillment", zap.String("checkoutId", checkoutID), zap.Error(err))
		return nil, err
	}

	var ticketID string
	switch checkout.Kind {
	case models.CheckoutRenewal:
		ticketID, err = s.fulfilRenewal(ctx, checkout)
	default:
		ticketID, err = s.fulfilPurchase(ctx, checkout)
	}
	if err != nil {
		return s.failFulfillment(ctx, checkout, err)
	}

	if err := s.Checkouts.Complete(ctx, checkout.ID, ticketID, s.now().UTC()); err != nil {
		return s.failFulfillment(ctx, checkout, err)
	}
	checkout.Status = models.CheckoutFulfilled
	checkout.TicketID = ticketID
	s.logger.Info("Checkout fulfilled", zap.String("checkoutId", checkout.ID), zap.String("ticketId", ticketID))
	return resultOf(checkout), nil
}

// failFulfillment leaves the checkout failed for manual reconciliation. It
// gets a fresh deadline since the fulfilment one may already be spent.
func (s *checkoutService) failFulfillment(ctx context.Context, checkout *models.Checkout, cause error) (*CheckoutResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureTimeout)
	defer cancel()

	s.logger.Error("Fulfillment failed after payment", zap.String("checkoutId", checkout.ID), zap.String("userId", checkout.UserID), zap.Error(cause))
	if err := s.Checkouts.Fail(ctx, checkout.ID, cause.Error(), s.now().UTC()); err != nil {
		s.logger.Error("Failed to mark checkout as failed", zap.String("checkoutId", checkout.ID), zap.Error(err))
	}
	s.Alerter.Alert(ctx, "Pedido pago sem entrega: "+checkout.ID, fmt.Sprintf(
		"Checkout %s (%s) do usuário %s, plano %s, valor %s, falhou após a confirmação do pagamento.\nErro: %v\nNenhuma nova tentativa será feita automaticamente.",
		checkout.ID, checkout.Kind, checkout.UserID, checkout.PlanID, formatBRL(checkout.FinalPrice), cause))
	checkout.Status = models.CheckoutFailed
	checkout.Error = cause.Error()
	return resultOf(checkout), ErrFulfillmentFailed
}

// fulfilPurchase creates the subscription and ticket, delivers stock and
// notifies both parties. It returns the new ticket ID.
func (s *checkoutService) fulfilPurchase(ctx context.Context, checkout *models.Checkout) (string, error) {
	now := s.now().UTC()

	plan, err := s.Plans.GetByID(ctx, checkout.PlanID)
	if err != nil {
		return "", fmt.Errorf("load plan: %w", err)
	}
	service, err := s.Services.GetByID(ctx, plan.ServiceID)
	if err != nil {
		return "", fmt.Errorf("load service: %w", err)
	}
	buyer, err := s.Users.GetByID(ctx, checkout.UserID)
	if err != nil {
		return "", fmt.Errorf("load buyer: %w", err)
	}
	seller, err := s.Users.GetByID(ctx, plan.SellerID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return "", fmt.Errorf("load seller: %w", err)
	}

	method := PaymentMethodLabel(checkout.CouponCode, checkout.AmountCents > 0)
	sub := &models.UserSubscription{
		UserID:        buyer.ID,
		PlanID:        plan.ID,
		ServiceID:     service.ID,
		PlanName:      plan.Name,
		ServiceName:   service.Name,
		Price:         checkout.FinalPrice,
		PaymentMethod: method,
		StartDate:     now,
		EndDate:       now.Add(SubscriptionPeriod),
	}
	if _, err := s.Subscriptions.Create(ctx, sub); err != nil {
		return "", fmt.Errorf("create subscription: %w", err)
	}

	ticket := &models.Ticket{
		UserSubscriptionID:  sub.ID,
		CustomerID:          buyer.ID,
		CustomerName:        buyer.DisplayName,
		SellerID:            plan.SellerID,
		SellerName:          plan.SellerName,
		PlanID:              plan.ID,
		PlanName:            plan.Name,
		ServiceName:         service.Name,
		Status:              models.TicketStatusOpen,
		UnreadBySellerCount: 1,
		CreatedAt:           now,
	}
	seed := &models.ChatMessage{
		SenderID:   systemSenderID,
		SenderName: systemSenderName,
		Text:       fmt.Sprintf("Pagamento confirmado (%s). Sua entrega de %s - %s está sendo preparada.", method, service.Name, plan.Name),
		Timestamp:  now,
		Type:       models.MessageSystem,
	}
	ticketID, err := s.Tickets.Create(ctx, ticket, seed)
	if err != nil {
		return "", fmt.Errorf("create ticket: %w", err)
	}
	if err := s.Subscriptions.SetTicketID(ctx, buyer.ID, sub.ID, ticketID); err != nil {
		return "", fmt.Errorf("link ticket: %w", err)
	}

	if err := s.deliver(ctx, ticket, buyer.ID, now); err != nil {
		return "", err
	}

	data := map[string]string{
		"cliente":  buyer.DisplayName,
		"vendedor": plan.SellerName,
		"produto":  service.Name + " - " + plan.Name,
		"servico":  service.Name,
		"plano":    plan.Name,
		"valor":    formatBRL(checkout.FinalPrice),
		"ticket":   ticketID,
	}
	if err := s.Notifications.Enqueue(ctx, models.NotificationDelivery, buyer.PhoneNumber, data); err != nil {
		s.logger.Warn("Failed to enqueue delivery notification", zap.String("ticketId", ticketID), zap.Error(err))
	}
	if seller != nil {
		if err := s.Notifications.Enqueue(ctx, models.NotificationSale, seller.PhoneNumber, data); err != nil {
			s.logger.Warn("Failed to enqueue sale notification", zap.String("ticketId", ticketID), zap.Error(err))
		}
	}
	return ticketID, nil
}

// deliver claims one deliverable for the ticket or flags it for manual delivery.
func (s *checkoutService) deliver(ctx context.Context, ticket *models.Ticket, buyerID string, now time.Time) error {
	d, err := s.Deliverables.ClaimOldestAvailable(ctx, ticket.PlanID, buyerID, now)
	if errors.Is(err, db.ErrNoStock) {
		msg := &models.ChatMessage{
			SenderID:   systemSenderID,
			SenderName: systemSenderName,
			Text:       "No momento estamos sem estoque automático para este plano. O vendedor foi avisado e fará a entrega manualmente em breve.",
			Timestamp:  now.Add(time.Millisecond),
			Type:       models.MessageSystem,
		}
		if _, err := s.Tickets.AddMessage(ctx, ticket.ID, msg, models.CounterDelta{SellerIncrement: 1, CustomerIncrement: 1}); err != nil {
			return fmt.Errorf("post no-stock message: %w", err)
		}
		if err := s.Tickets.FlagManualDelivery(ctx, ticket.ID, true); err != nil {
			return fmt.Errorf("flag manual delivery: %w", err)
		}
		s.logger.Warn("Sale without stock, manual delivery needed", zap.String("ticketId", ticket.ID), zap.String("planId", ticket.PlanID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim deliverable: %w", err)
	}

	content, err := s.Sealer.Open(d.Content)
	if err != nil {
		return fmt.Errorf("open deliverable %s: %w", d.ID, err)
	}
	msg := &models.ChatMessage{
		SenderID:   ticket.SellerID,
		SenderName: ticket.SellerName,
		Text:       "Aqui estão os dados da sua assinatura:\n\n" + content,
		Timestamp:  now.Add(time.Millisecond),
		Type:       models.MessageText,
	}
	if _, err := s.Tickets.AddMessage(ctx, ticket.ID, msg, models.CounterDelta{CustomerIncrement: 1, ResetSeller: true}); err != nil {
		return fmt.Errorf("post delivery message: %w", err)
	}
	return nil
}

// fulfilRenewal extends the subscription by one period from the later of its
// current end and now.
func (s *checkoutService) fulfilRenewal(ctx context.Context, checkout *models.Checkout) (string, error) {
	now := s.now().UTC()
	ticket, err := s.Tickets.GetByID(ctx, checkout.TicketID)
	if err != nil {
		return "", fmt.Errorf("load ticket: %w", err)
	}
	sub, err := s.Subscriptions.Get(ctx, ticket.CustomerID, ticket.UserSubscriptionID)
	if err != nil {
		return "", fmt.Errorf("load subscription: %w", err)
	}

	newEnd := RenewedEndDate(sub.EndDate, now)
	if err := s.Subscriptions.SetEndDate(ctx, ticket.CustomerID, sub.ID, newEnd); err != nil {
		return "", fmt.Errorf("extend subscription: %w", err)
	}
	msg := &models.ChatMessage{
		SenderID:   systemSenderID,
		SenderName: systemSenderName,
		Text:       "Assinatura renovada! Nova data de expiração: " + newEnd.Format("02/01/2006"),
		Timestamp:  now,
		Type:       models.MessageSystem,
	}
	if _, err := s.Tickets.AddMessage(ctx, ticket.ID, msg, models.CounterDelta{SellerIncrement: 1, CustomerIncrement: 1}); err != nil {
		return "", fmt.Errorf("post renewal message: %w", err)
	}
	return ticket.ID, nil
}

// RenewedEndDate appends one period to end, or to now when end already passed.
func RenewedEndDate(end, now time.Time) time.Time {
	if end.Before(now) {
		end = now
	}
	return end.Add(SubscriptionPeriod)
}
