package models

import "time"

// Checkout kinds.
const (
	CheckoutPurchase = "purchase"
	CheckoutRenewal  = "renewal"
)

// Checkout statuses. A checkout leaves "pending" exactly once.
const (
	CheckoutPending    = "pending"
	CheckoutFulfilling = "fulfilling"
	CheckoutFulfilled  = "fulfilled"
	CheckoutFailed     = "failed"
)

// Checkout tracks one payment attempt from charge creation to fulfillment.
// For PIX checkouts the document ID is the provider transaction ID.
type Checkout struct {
	ID            string    `json:"id" firestore:"-"`
	Kind          string    `json:"kind" firestore:"kind"`
	UserID        string    `json:"userId" firestore:"userId"`
	ServiceID     string    `json:"serviceId" firestore:"serviceId"`
	PlanID        string    `json:"planId" firestore:"planId"`
	TicketID      string    `json:"ticketId,omitempty" firestore:"ticketId,omitempty"`
	CouponCode    string    `json:"couponCode,omitempty" firestore:"couponCode,omitempty"`
	OriginalPrice float64   `json:"originalPrice" firestore:"originalPrice"`
	FinalPrice    float64   `json:"finalPrice" firestore:"finalPrice"`
	AmountCents   int64     `json:"amountCents" firestore:"amountCents"`
	Status        string    `json:"status" firestore:"status"`
	QRCode        string    `json:"qrCode,omitempty" firestore:"qrCode,omitempty"`
	QRCodeBase64  string    `json:"qrCodeBase64,omitempty" firestore:"qrCodeBase64,omitempty"`
	Error         string    `json:"error,omitempty" firestore:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" firestore:"updatedAt"`
}
