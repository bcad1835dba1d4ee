package models

import "time"

// NotificationType tags a queued WhatsApp message and selects its template.
type NotificationType string

const (
	NotificationWelcome  NotificationType = "welcome"
	NotificationSale     NotificationType = "sale_notification"
	NotificationDelivery NotificationType = "delivery"
	NotificationTicket   NotificationType = "ticket_notification"
)

// PendingWhatsappMessage is an entry of the pending_whatsapp_messages queue.
type PendingWhatsappMessage struct {
	ID            string            `json:"id" firestore:"-"`
	Type          NotificationType  `json:"type" firestore:"type"`
	To            string            `json:"to" firestore:"to"`
	CreatedAt     time.Time         `json:"createdAt" firestore:"createdAt"`
	Data          map[string]string `json:"data" firestore:"data"`
	Attempts      int               `json:"attempts" firestore:"attempts"`
	NextAttemptAt time.Time         `json:"nextAttemptAt" firestore:"nextAttemptAt"`
	Processing    bool              `json:"processing" firestore:"processing"`
	ClaimedBy     string            `json:"claimedBy,omitempty" firestore:"claimedBy,omitempty"`
	ClaimedAt     *time.Time        `json:"claimedAt,omitempty" firestore:"claimedAt,omitempty"`
	LastError     string            `json:"lastError,omitempty" firestore:"lastError,omitempty"`
}

// Due reports whether the entry may be attempted at now.
func (m *PendingWhatsappMessage) Due(now time.Time) bool {
	return m.NextAttemptAt.IsZero() || !m.NextAttemptAt.After(now)
}

// Claimable reports whether a worker may take the entry at now given the claim lease.
func (m *PendingWhatsappMessage) Claimable(now time.Time, lease time.Duration) bool {
	if !m.Due(now) {
		return false
	}
	if !m.Processing || m.ClaimedAt == nil {
		return true
	}
	return now.Sub(*m.ClaimedAt) >= lease
}
