package models

// UpdateProfileRequest is the body of PATCH /users/me. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	DisplayName      *string `json:"displayName,omitempty"`
	PhoneNumber      *string `json:"phoneNumber,omitempty"`
	WhatsappAPIToken *string `json:"whatsappApiToken,omitempty"`
}

// QuoteRequest asks for the price of a plan with an optional coupon.
type QuoteRequest struct {
	PlanID     string `json:"planId" binding:"required"`
	CouponCode string `json:"couponCode,omitempty"`
}

// CheckoutRequest starts a purchase.
type CheckoutRequest struct {
	ServiceID  string `json:"serviceId" binding:"required"`
	PlanID     string `json:"planId" binding:"required"`
	CouponCode string `json:"couponCode,omitempty"`
}

// SendMessageRequest posts a chat message to a ticket.
type SendMessageRequest struct {
	Type    string `json:"type" binding:"required,oneof=text media_request media_response"`
	Text    string `json:"text,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// PlanRequest is used by sellers to create or replace a plan.
type PlanRequest struct {
	ServiceID    string   `json:"serviceId" binding:"required"`
	Name         string   `json:"name" binding:"required"`
	Price        float64  `json:"price" binding:"gte=0"`
	Features     []string `json:"features,omitempty"`
	AccountModel string   `json:"accountModel" binding:"required"`
	UserLimit    int      `json:"userLimit" binding:"gte=1"`
	Quality      string   `json:"quality,omitempty"`
	BannerURL    string   `json:"bannerUrl,omitempty"`
}

// AddDeliverablesRequest adds stock to a plan, one deliverable per content entry.
type AddDeliverablesRequest struct {
	Contents []string `json:"contents" binding:"required,min=1,dive,required"`
}

// CouponRequest creates a coupon.
type CouponRequest struct {
	Code               string  `json:"code" binding:"required"`
	DiscountPercentage float64 `json:"discountPercentage" binding:"required"`
	UsageLimit         int     `json:"usageLimit,omitempty"`
}

// SetRoleRequest changes a user's role.
type SetRoleRequest struct {
	Role Role `json:"role" binding:"required,oneof=customer seller admin"`
}

// RecommendationRequest is the input of the recommendation flow.
type RecommendationRequest struct {
	ViewingHistory []string `json:"viewingHistory"`
	Preferences    string   `json:"preferences"`
}

// Recommendation is one suggested subscription.
type Recommendation struct {
	SubscriptionName string `json:"subscriptionName"`
	PlanDetails      string `json:"planDetails"`
	Reason           string `json:"reason"`
}

// RecommendationResponse is the structured output of the recommendation flow.
type RecommendationResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
}
