package models

import "time"

// TicketStatusOpen is the only ticket status the workflow produces.
const TicketStatusOpen = "open"

// Message types.
const (
	MessageText          = "text"
	MessageMediaRequest  = "media_request"
	MessageMediaResponse = "media_response"
	MessageSystem        = "system"
)

// UserSubscription records one completed purchase. Stored under users/{id}/userSubscriptions.
type UserSubscription struct {
	ID            string    `json:"id" firestore:"-"`
	UserID        string    `json:"userId" firestore:"userId"`
	PlanID        string    `json:"planId" firestore:"planId"`
	ServiceID     string    `json:"serviceId" firestore:"serviceId"`
	PlanName      string    `json:"planName" firestore:"planName"`
	ServiceName   string    `json:"serviceName" firestore:"serviceName"`
	Price         float64   `json:"price" firestore:"price"`
	PaymentMethod string    `json:"paymentMethod" firestore:"paymentMethod"`
	StartDate     time.Time `json:"startDate" firestore:"startDate"`
	EndDate       time.Time `json:"endDate" firestore:"endDate"`
	TicketID      string    `json:"ticketId,omitempty" firestore:"ticketId,omitempty"`
}

// Expired reports whether the subscription validity window has passed at now.
func (s *UserSubscription) Expired(now time.Time) bool {
	return !s.EndDate.After(now)
}

// Ticket is the per-purchase conversation between buyer and seller.
type Ticket struct {
	ID                    string    `json:"id" firestore:"-"`
	UserSubscriptionID    string    `json:"userSubscriptionId" firestore:"userSubscriptionId"`
	CustomerID            string    `json:"customerId" firestore:"customerId"`
	CustomerName          string    `json:"customerName" firestore:"customerName"`
	SellerID              string    `json:"sellerId" firestore:"sellerId"`
	SellerName            string    `json:"sellerName" firestore:"sellerName"`
	PlanID                string    `json:"planId" firestore:"planId"`
	PlanName              string    `json:"planName" firestore:"planName"`
	ServiceName           string    `json:"serviceName" firestore:"serviceName"`
	Status                string    `json:"status" firestore:"status"`
	NeedsManualDelivery   bool      `json:"needsManualDelivery" firestore:"needsManualDelivery"`
	LastMessage           string    `json:"lastMessage" firestore:"lastMessage"`
	LastMessageAt         time.Time `json:"lastMessageAt" firestore:"lastMessageAt"`
	UnreadBySellerCount   int       `json:"unreadBySellerCount" firestore:"unreadBySellerCount"`
	UnreadByCustomerCount int       `json:"unreadByCustomerCount" firestore:"unreadByCustomerCount"`
	CreatedAt             time.Time `json:"createdAt" firestore:"createdAt"`
}

// IsParticipant reports whether userID is the buyer or the seller of the ticket.
func (t *Ticket) IsParticipant(userID string) bool {
	return userID != "" && (t.CustomerID == userID || t.SellerID == userID)
}

// CounterpartOf returns the other participant's ID.
func (t *Ticket) CounterpartOf(userID string) string {
	if userID == t.SellerID {
		return t.CustomerID
	}
	return t.SellerID
}

// ChatMessage belongs to a ticket. Messages are ordered by Timestamp ascending.
type ChatMessage struct {
	ID         string    `json:"id" firestore:"-"`
	SenderID   string    `json:"senderId" firestore:"senderId"`
	SenderName string    `json:"senderName" firestore:"senderName"`
	Text       string    `json:"text" firestore:"text"`
	Timestamp  time.Time `json:"timestamp" firestore:"timestamp"`
	Type       string    `json:"type" firestore:"type"`
	Payload    string    `json:"payload,omitempty" firestore:"payload,omitempty"`
}

// CounterDelta describes how a message write moves the two unread counters.
// Reset takes precedence over the increment for the same counter.
type CounterDelta struct {
	SellerIncrement   int
	CustomerIncrement int
	ResetSeller       bool
	ResetCustomer     bool
}
