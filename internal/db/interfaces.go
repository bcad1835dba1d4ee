package db

import (
	"context"
	"errors"
	"time"

	"github.com/example/subsmarket/internal/models"
	"github.com/example/subsmarket/pkg/database"
)

// Collection names.
const (
	usersCollection             = "users"
	userSubscriptionsCollection = "userSubscriptions"
	servicesCollection          = "services"
	plansCollection             = "subscriptions"
	deliverablesCollection      = "deliverables"
	couponsCollection           = "coupons"
	ticketsCollection           = "tickets"
	messagesCollection          = "messages"
	configsCollection           = "configs"
	notificationsCollection     = "pending_whatsapp_messages"
	checkoutsCollection         = "checkouts"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = database.ErrNotFound
	// ErrAlreadyExists is returned when creating a document whose ID is taken.
	ErrAlreadyExists = database.ErrAlreadyExists
	// ErrConflict is returned when a conditional transition finds the document
	// in an unexpected state.
	ErrConflict = errors.New("document state conflict")
	// ErrNoStock is returned when a plan has no available deliverable.
	ErrNoStock = errors.New("no available deliverable")
)

// UserRepository defines the interface for user data storage operations.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, userID string, fields map[string]interface{}) error
	SetLastSeen(ctx context.Context, userID string, at time.Time) error
	List(ctx context.Context) ([]*models.User, error)
	Delete(ctx context.Context, userID string) error
}

// ServiceRepository stores catalog services.
type ServiceRepository interface {
	List(ctx context.Context) ([]*models.SubscriptionService, error)
	GetByID(ctx context.Context, serviceID string) (*models.SubscriptionService, error)
	Create(ctx context.Context, svc *models.SubscriptionService) (string, error)
	Update(ctx context.Context, svc *models.SubscriptionService) error
	Delete(ctx context.Context, serviceID string) error
}

// PlanRepository stores seller plans.
type PlanRepository interface {
	ListByService(ctx context.Context, serviceID string) ([]*models.Plan, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*models.Plan, error)
	GetByID(ctx context.Context, planID string) (*models.Plan, error)
	Create(ctx context.Context, plan *models.Plan) (string, error)
	// Update replaces the editable fields. Stock and ownership are left untouched.
	Update(ctx context.Context, plan *models.Plan) error
	Delete(ctx context.Context, planID string) error
}

// DeliverableRepository stores plan stock. Every write keeps plan.stock in step.
type DeliverableRepository interface {
	Add(ctx context.Context, planID string, contents []string, now time.Time) ([]string, error)
	List(ctx context.Context, planID string) ([]*models.Deliverable, error)
	DeleteAvailable(ctx context.Context, planID, deliverableID string) error
	// ClaimOldestAvailable atomically flips the earliest-created available
	// deliverable to sold. ErrNoStock when there is none.
	ClaimOldestAvailable(ctx context.Context, planID, buyerID string, now time.Time) (*models.Deliverable, error)
}

// CouponRepository stores discount coupons keyed by code.
type CouponRepository interface {
	Get(ctx context.Context, code string) (*models.Coupon, error)
	Create(ctx context.Context, coupon *models.Coupon) error
	List(ctx context.Context) ([]*models.Coupon, error)
	Delete(ctx context.Context, code string) error
}

// SubscriptionRepository stores users/{id}/userSubscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.UserSubscription) (string, error)
	Get(ctx context.Context, userID, subscriptionID string) (*models.UserSubscription, error)
	ListByUser(ctx context.Context, userID string) ([]*models.UserSubscription, error)
	SetTicketID(ctx context.Context, userID, subscriptionID, ticketID string) error
	SetEndDate(ctx context.Context, userID, subscriptionID string, end time.Time) error
}

// TicketRepository stores tickets and their messages.
type TicketRepository interface {
	// Create writes the ticket and its seed message in one batch.
	Create(ctx context.Context, ticket *models.Ticket, seed *models.ChatMessage) (string, error)
	GetByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Ticket, error)
	// AddMessage appends msg, updates the preview and moves the counters.
	AddMessage(ctx context.Context, ticketID string, msg *models.ChatMessage, delta models.CounterDelta) (string, error)
	FlagManualDelivery(ctx context.Context, ticketID string, flag bool) error
	ResetUnread(ctx context.Context, ticketID string, seller bool) error
	ListMessages(ctx context.Context, ticketID string) ([]*models.ChatMessage, error)
	// ListenMessages calls fn with the full ordered message list on every change
	// until ctx ends.
	ListenMessages(ctx context.Context, ticketID string, fn func([]*models.ChatMessage)) error
}

// NotificationRepository is the pending_whatsapp_messages queue.
type NotificationRepository interface {
	Enqueue(ctx context.Context, msg *models.PendingWhatsappMessage) (string, error)
	// Listen calls fn with every added or modified entry until ctx ends.
	Listen(ctx context.Context, fn func(*models.PendingWhatsappMessage)) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.PendingWhatsappMessage, error)
	// Claim marks the entry as processing by workerID when it is claimable.
	// ok is false when another worker holds it or it is not due.
	Claim(ctx context.Context, id, workerID string, now time.Time, lease time.Duration) (msg *models.PendingWhatsappMessage, ok bool, err error)
	Reschedule(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error
	Delete(ctx context.Context, id string) error
}

// CheckoutRepository stores payment attempts.
type CheckoutRepository interface {
	Create(ctx context.Context, checkout *models.Checkout) (string, error)
	GetByID(ctx context.Context, checkoutID string) (*models.Checkout, error)
	// BeginFulfillment moves a pending checkout to fulfilling.
	// ErrConflict when the checkout already left pending.
	BeginFulfillment(ctx context.Context, checkoutID string, now time.Time) (*models.Checkout, error)
	Complete(ctx context.Context, checkoutID, ticketID string, now time.Time) error
	Fail(ctx context.Context, checkoutID, reason string, now time.Time) error
}

// ConfigRepository reads and writes the configs/* singletons.
type ConfigRepository interface {
	Payment(ctx context.Context) (*models.PaymentConfig, error)
	Whatsapp(ctx context.Context) (*models.WhatsappConfig, error)
	SpecialCoupons(ctx context.Context) (*models.SpecialCouponsConfig, error)
	Put(ctx context.Context, docID string, value interface{}) error
	// ListenWhatsapp calls fn with the current whatsapp config on every change.
	// A missing document is delivered as a zero config.
	ListenWhatsapp(ctx context.Context, fn func(*models.WhatsappConfig)) error
}
