package core

import "errors"

// Lookup and permission errors.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrPlanNotFound        = errors.New("plan not found")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrCheckoutNotFound    = errors.New("checkout not found")
	ErrDeliverableNotFound = errors.New("deliverable not found")
	ErrForbidden           = errors.New("user does not have permission for this action")
)

// Validation errors.
var (
	ErrValidation      = errors.New("validation failed")
	ErrInvalidCoupon   = errors.New("invalid coupon code")
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrCouponExists    = errors.New("coupon already exists")
	ErrInvalidMessage  = errors.New("invalid message")
	ErrMediaTooLarge   = errors.New("media payload exceeds 5MB")
	ErrTicketExpired   = errors.New("subscription expired, renew to keep chatting")
	ErrDeliverableSold = errors.New("sold deliverables cannot be removed")
	ErrUnknownConfig   = errors.New("unknown configuration document")
	ErrCannotRenewFree = errors.New("subscription has no price to renew")
)

// Configuration errors carry operator remediation text.
var (
	ErrPaymentNotConfigured        = errors.New("payment provider is not configured: set the PIX API token in configs/payment or PIX_API_TOKEN")
	ErrWhatsappNotConfigured       = errors.New("whatsapp gateway is not configured: set the API token in configs/whatsapp and WHATSAPP_API_BASE_URL")
	ErrRecommendationNotConfigured = errors.New("recommendations are not configured: set GEMINI_API_KEY")
)

// Upstream and post-payment errors.
var (
	ErrPaymentGateway    = errors.New("payment gateway error")
	ErrWhatsappGateway   = errors.New("whatsapp gateway error")
	ErrConnectTimeout    = errors.New("whatsapp instance did not connect in time")
	ErrFulfillmentFailed = errors.New("payment received but the order could not be processed")
	ErrRecommendation    = errors.New("recommendation service unavailable")
)
