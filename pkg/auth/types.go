package auth

import (
	"github.com/campusgate/campusgate/pkg/accounts"
)

// AuthContext is the per-request security context: the resolved account
// and its derived role set. It is created by the authentication filter
// when a valid bearer token is presented and dies with the request.
type AuthContext struct {
	Account *accounts.Account
	Roles   []accounts.Role
}

// NewAuthContext builds a security context for an account
func NewAuthContext(account *accounts.Account) *AuthContext {
	return &AuthContext{
		Account: account,
		Roles:   []accounts.Role{account.Role},
	}
}

// HasRole reports whether the context carries the role
func (c *AuthContext) HasRole(role accounts.Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the context carries at least one of the roles
func (c *AuthContext) HasAnyRole(roles ...accounts.Role) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// Email returns the authenticated identifier, or "" without an account
func (c *AuthContext) Email() string {
	if c == nil || c.Account == nil {
		return ""
	}
	return c.Account.Email
}
