package models

const (
	RoleSubscriber = "subscriber"
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
)

// Identity is the authenticated caller as asserted by the identity provider.
// It is passed explicitly into every core operation.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the caller holds the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
