package models

// Document IDs inside the "configs" collection.
const (
	ConfigPayment        = "payment"
	ConfigWhatsapp       = "whatsapp"
	ConfigSpecialCoupons = "specialCoupons"
)

// PaymentConfig holds the PIX provider settings.
type PaymentConfig struct {
	Provider string `json:"provider" firestore:"provider"`
	APIToken string `json:"apiToken,omitempty" firestore:"apiToken"`
	Enabled  bool   `json:"enabled" firestore:"enabled"`
}

// MessageTemplates are the WhatsApp texts per notification type. Placeholders use {name}.
type MessageTemplates struct {
	WelcomeMessage            string `json:"welcomeMessage" firestore:"welcomeMessage" yaml:"welcomeMessage"`
	SaleNotificationMessage   string `json:"saleNotificationMessage" firestore:"saleNotificationMessage" yaml:"saleNotificationMessage"`
	DeliveryMessage           string `json:"deliveryMessage" firestore:"deliveryMessage" yaml:"deliveryMessage"`
	TicketNotificationMessage string `json:"ticketNotificationMessage" firestore:"ticketNotificationMessage" yaml:"ticketNotificationMessage"`
}

// For returns the template configured for t, or "" when none is set.
func (m MessageTemplates) For(t NotificationType) string {
	switch t {
	case NotificationWelcome:
		return m.WelcomeMessage
	case NotificationSale:
		return m.SaleNotificationMessage
	case NotificationDelivery:
		return m.DeliveryMessage
	case NotificationTicket:
		return m.TicketNotificationMessage
	}
	return ""
}

// WhatsappConfig holds the gateway instance settings and message templates.
type WhatsappConfig struct {
	APIToken     string           `json:"apiToken,omitempty" firestore:"apiToken"`
	InstanceName string           `json:"instanceName,omitempty" firestore:"instanceName,omitempty"`
	Templates    MessageTemplates `json:"templates" firestore:"templates"`
}

// SpecialCoupon is a config-defined code, optionally restricted to some services.
type SpecialCoupon struct {
	Code               string   `json:"code" firestore:"code" validate:"required,couponcode"`
	DiscountPercentage float64  `json:"discountPercentage" firestore:"discountPercentage" validate:"gte=1,lte=100"`
	ServiceIDs         []string `json:"serviceIds,omitempty" firestore:"serviceIds,omitempty"`
}

// AppliesTo reports whether the coupon may be used on serviceID.
func (c SpecialCoupon) AppliesTo(serviceID string) bool {
	if len(c.ServiceIDs) == 0 {
		return true
	}
	for _, id := range c.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// SpecialCouponsConfig lists coupons managed as configuration rather than documents.
type SpecialCouponsConfig struct {
	Enabled bool            `json:"enabled" firestore:"enabled"`
	Coupons []SpecialCoupon `json:"coupons" firestore:"coupons" validate:"dive"`
}
