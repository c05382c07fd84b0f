package models

// Caller roles
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Identity is the authenticated caller as extracted from the session token.
// Token issuance belongs to the identity service; this backend only verifies
// and trusts the claims.
type Identity struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"` // customer or admin
}

// IsAdmin reports whether the caller may perform administrative operations.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
