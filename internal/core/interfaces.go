package core

import (
	"context"
	"time"

	"github.com/example/subsmarket/internal/gateway/pix"
	"github.com/example/subsmarket/internal/gateway/whatsapp"
	"github.com/example/subsmarket/internal/models"
)

// Identity is the authenticated caller as asserted by the ID token.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	PhoneNumber string
}

// UserService manages profiles and presence.
type UserService interface {
	Initialize(ctx context.Context, id Identity) (*models.User, bool, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error)
	Heartbeat(ctx context.Context, userID string) error
	Presence(ctx context.Context, userID string) (*PresenceInfo, error)
}

// NotificationService is the producer side of the WhatsApp queue.
type NotificationService interface {
	Enqueue(ctx context.Context, t models.NotificationType, phone string, data map[string]string) error
}

// CatalogService exposes services, plans and plan stock.
type CatalogService interface {
	ListServices(ctx context.Context) ([]*models.SubscriptionService, error)
	GetService(ctx context.Context, serviceID string) (*models.SubscriptionService, error)
	CreateService(ctx context.Context, svc models.SubscriptionService) (*models.SubscriptionService, error)
	UpdateService(ctx context.Context, serviceID string, svc models.SubscriptionService) (*models.SubscriptionService, error)
	DeleteService(ctx context.Context, serviceID string) error

	ListPlans(ctx context.Context, serviceID string) ([]*models.Plan, error)
	ListSellerPlans(ctx context.Context, seller *models.User) ([]*models.Plan, error)
	GetPlan(ctx context.Context, planID string) (*models.Plan, error)
	CreatePlan(ctx context.Context, seller *models.User, req models.PlanRequest) (*models.Plan, error)
	UpdatePlan(ctx context.Context, seller *models.User, planID string, req models.PlanRequest) (*models.Plan, error)
	DeletePlan(ctx context.Context, seller *models.User, planID string) error

	AddDeliverables(ctx context.Context, seller *models.User, planID string, contents []string) ([]string, error)
	ListDeliverables(ctx context.Context, seller *models.User, planID string) ([]*models.Deliverable, error)
	DeleteDeliverable(ctx context.Context, seller *models.User, planID, deliverableID string) error
}

// AdminService covers coupons, users and configuration documents.
type AdminService interface {
	CreateCoupon(ctx context.Context, req models.CouponRequest) (*models.Coupon, error)
	ListCoupons(ctx context.Context) ([]*models.Coupon, error)
	DeleteCoupon(ctx context.Context, code string) error

	ListUsers(ctx context.Context) ([]*models.User, error)
	SetRole(ctx context.Context, userID string, role models.Role) error
	DeleteUser(ctx context.Context, userID string) error

	GetConfig(ctx context.Context, docID string) (interface{}, error)
	PutConfig(ctx context.Context, docID string, raw []byte) (interface{}, error)
}

// WhatsappService is the admin view of the gateway instance.
type WhatsappService interface {
	Status(ctx context.Context, admin *models.User) (*whatsapp.InstanceStatus, error)
	Connect(ctx context.Context, admin *models.User) (string, error)
	AwaitConnection(ctx context.Context, admin *models.User) (*whatsapp.InstanceStatus, error)
}

// CheckoutService runs purchases and renewals from quote to fulfillment.
type CheckoutService interface {
	Quote(ctx context.Context, planID, couponCode string) (*Quote, error)
	Start(ctx context.Context, buyer *models.User, req models.CheckoutRequest) (*CheckoutResult, error)
	StartRenewal(ctx context.Context, buyer *models.User, ticket *models.Ticket) (*CheckoutResult, error)
	Status(ctx context.Context, buyer *models.User, checkoutID string) (*CheckoutResult, error)
	AwaitPayment(ctx context.Context, buyer *models.User, checkoutID string) (*CheckoutResult, error)
}

// TicketService runs the per-purchase chat.
type TicketService interface {
	List(ctx context.Context, user *models.User) ([]*models.Ticket, error)
	Open(ctx context.Context, user *models.User, ticketID string) (*TicketView, error)
	SendMessage(ctx context.Context, user *models.User, ticketID string, req models.SendMessageRequest) (*models.ChatMessage, error)
	StartRenewal(ctx context.Context, user *models.User, ticketID string) (*CheckoutResult, error)
	Stream(ctx context.Context, user *models.User, ticketID string, fn func([]*models.ChatMessage)) error
}

// RecommendationService asks the generative model for plan suggestions.
type RecommendationService interface {
	Recommend(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResponse, error)
}

// PaymentGateway is the subset of the PIX client the checkout uses.
type PaymentGateway interface {
	CreateCharge(ctx context.Context, token string, valueCents int64) (*pix.Charge, error)
	GetStatus(ctx context.Context, token, transactionID string) (string, error)
}

// WhatsappGateway is the subset of the WhatsApp client the services use.
type WhatsappGateway interface {
	InstanceStatus(ctx context.Context, token string) (*whatsapp.InstanceStatus, error)
	Connect(ctx context.Context, token string) (string, error)
	SendMessage(ctx context.Context, token, phone, text string) error
}

// Sealer encrypts values stored at rest.
type Sealer interface {
	Seal(plainText string) (string, error)
	Open(value string) (string, error)
}

// Alerter notifies operators of conditions that need a human.
type Alerter interface {
	Alert(ctx context.Context, subject, body string)
}

// Locker is the re-entry guard store, satisfied by pkg/cache.
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}
