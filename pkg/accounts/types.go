// Package accounts is the credential store for the admissions portal.
// It owns account records (identity, role, status, credential hash) and
// provides the lookup and provisioning operations the authentication
// pipeline depends on.
package accounts

import (
	"strings"
	"time"
)

// Role classifies an account's portal privileges
type Role string

const (
	RoleAdmin   Role = "admin"   // Full portal administration
	RoleStaff   Role = "staff"   // Admissions staff, manages plans and institutions
	RoleStudent Role = "student" // Applicant, read-mostly access
)

// Valid reports whether the role is one of the closed enumeration
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleStudent:
		return true
	}
	return false
}

// SecurityLabel derives the authority label used in policy predicates
// and audit records, e.g. "ROLE_ADMIN".
func (r Role) SecurityLabel() string {
	return "ROLE_" + strings.ToUpper(string(r))
}

// Status is an account's lifecycle state. Only active accounts may hold
// a valid session; the filter re-checks status on every request, so
// deactivating an account invalidates its outstanding tokens immediately.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether the status is one of the closed enumeration
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// LoginMethod records how an account authenticates
type LoginMethod string

const (
	LoginMethodPassword LoginMethod = "password"
	LoginMethodGoogle   LoginMethod = "google"
)

// Account is a portal principal. Email is the unique, stable identifier.
// PasswordHash is nil for accounts provisioned through a third-party
// identity provider; such accounts have no usable password.
type Account struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	DisplayName  string      `json:"display_name,omitempty"`
	Role         Role        `json:"role"`
	Status       Status      `json:"status"`
	LoginMethod  LoginMethod `json:"login_method"`
	PasswordHash *string     `json:"-"` // Never expose the hash
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	LastLoginAt  *time.Time  `json:"last_login_at,omitempty"`
}

// IsActive reports whether the account may authenticate
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}
