package accounts

import "time"

// AdminRoleName is the canonical name of the privileged role. The stored
// name must be exact; lenient matching of near-miss spellings happens only
// in the rbac package's coarse role gate.
const AdminRoleName = "Admin"

// Role is a named permission bucket. Permissions are not stored on the
// role; they come from the static pattern configuration keyed by role name
// (see pkg/rbac).
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin reports whether this is the canonical Admin role
func (r *Role) IsAdmin() bool {
	return r != nil && r.Name == AdminRoleName
}

// Account is a user identity record. PasswordHash is empty for pure-SSO
// accounts; ProviderID is nil until an external identity is linked.
type Account struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	ProviderID   *string    `json:"provider_id,omitempty"`
	Active       bool       `json:"is_active"`
	RoleID       *int64     `json:"role_id,omitempty"`
	Role         *Role      `json:"role,omitempty"`
	CurrencyCode string     `json:"currency_code"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// RoleName returns the account's role name, or "" when no role is assigned.
// An account without a role is granted nothing by permission checks.
func (a *Account) RoleName() string {
	if a.Role == nil {
		return ""
	}
	return a.Role.Name
}

// HasPassword reports whether a local password credential is set
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// SSOLinked reports whether an external provider identity is linked
func (a *Account) SSOLinked() bool {
	return a.ProviderID != nil && *a.ProviderID != ""
}
