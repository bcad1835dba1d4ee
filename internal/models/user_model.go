package models

import "time"

// Role is the access level of a marketplace user.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// User represents a marketplace account. The document ID is the Firebase Auth UID.
type User struct {
	ID          string    `json:"id" firestore:"-"`
	Email       string    `json:"email" firestore:"email"`
	DisplayName string    `json:"displayName" firestore:"displayName"`
	PhoneNumber string    `json:"phoneNumber,omitempty" firestore:"phoneNumber,omitempty"`
	Role        Role      `json:"role" firestore:"role"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
	// WhatsappAPIToken is stored encrypted and never serialized to clients.
	WhatsappAPIToken string     `json:"-" firestore:"whatsappApiToken,omitempty"`
	LastSeen         *time.Time `json:"lastSeen,omitempty" firestore:"lastSeen,omitempty"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// IsSeller reports whether the user can list plans. Admins can act as sellers.
func (u *User) IsSeller() bool {
	return u != nil && (u.Role == RoleSeller || u.Role == RoleAdmin)
}
