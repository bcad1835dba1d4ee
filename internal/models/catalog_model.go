package models

import "time"

// Account models a plan can be sold under.
const (
	AccountModelCaptured   = "Capturada"
	AccountModelFullAccess = "Acesso Total"
)

// SubscriptionService is a catalog entry for a streaming brand.
type SubscriptionService struct {
	ID              string `json:"id" firestore:"-"`
	Name            string `json:"name" firestore:"name" validate:"required,max=80"`
	Description     string `json:"description" firestore:"description" validate:"max=280"`
	LongDescription string `json:"longDescription,omitempty" firestore:"longDescription,omitempty"`
	LogoURL         string `json:"logoUrl,omitempty" firestore:"logoUrl,omitempty" validate:"omitempty,url"`
	BannerURL       string `json:"bannerUrl,omitempty" firestore:"bannerUrl,omitempty" validate:"omitempty,url"`
}

// Plan is a seller's offer for a service. Stored in the "subscriptions" collection.
type Plan struct {
	ID           string    `json:"id" firestore:"-"`
	ServiceID    string    `json:"serviceId" firestore:"serviceId" validate:"required"`
	SellerID     string    `json:"sellerId" firestore:"sellerId"`
	SellerName   string    `json:"sellerName" firestore:"sellerName"`
	Name         string    `json:"name" firestore:"name" validate:"required,max=80"`
	Price        float64   `json:"price" firestore:"price" validate:"gte=0"`
	Features     []string  `json:"features" firestore:"features"`
	AccountModel string    `json:"accountModel" firestore:"accountModel" validate:"oneof=Capturada 'Acesso Total'"`
	UserLimit    int       `json:"userLimit" firestore:"userLimit" validate:"gte=1"`
	Stock        int       `json:"stock" firestore:"stock"`
	Quality      string    `json:"quality,omitempty" firestore:"quality,omitempty"`
	BannerURL    string    `json:"bannerUrl,omitempty" firestore:"bannerUrl,omitempty" validate:"omitempty,url"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt"`
}

// Deliverable statuses.
const (
	DeliverableAvailable = "available"
	DeliverableSold      = "sold"
)

// Deliverable is one unit of sellable credential content tied to a plan's stock.
// Content is encrypted at rest.
type Deliverable struct {
	ID        string     `json:"id" firestore:"-"`
	PlanID    string     `json:"planId" firestore:"-"`
	Content   string     `json:"content,omitempty" firestore:"content"`
	Status    string     `json:"status" firestore:"status"`
	CreatedAt time.Time  `json:"createdAt" firestore:"createdAt"`
	SoldAt    *time.Time `json:"soldAt,omitempty" firestore:"soldAt,omitempty"`
	SoldTo    string     `json:"soldTo,omitempty" firestore:"soldTo,omitempty"`
}

// Coupon is a discount code. The document ID is the uppercased code.
type Coupon struct {
	Code               string    `json:"code" firestore:"-" validate:"required,couponcode"`
	DiscountPercentage float64   `json:"discountPercentage" firestore:"discountPercentage" validate:"gte=1,lte=100"`
	UsageLimit         int       `json:"usageLimit" firestore:"usageLimit" validate:"gte=0"`
	UsageCount         int       `json:"usageCount" firestore:"usageCount"`
	CreatedAt          time.Time `json:"createdAt" firestore:"createdAt"`
}
