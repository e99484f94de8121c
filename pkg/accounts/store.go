package accounts

import (
	"context"
	"errors"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound indicates no account exists for the identifier
	ErrNotFound = errors.New("account not found")

	// ErrDuplicate indicates an insert hit the unique email constraint.
	// Callers provisioning accounts must treat this as "already exists,
	// retry the lookup", not as a fatal error.
	ErrDuplicate = errors.New("account already exists")
)

// Store is the credential store consumed by the authentication service
// and the request authentication filter. Implementations must enforce
// email uniqueness at the storage layer so concurrent check-then-create
// sequences cannot produce two accounts for one identity.
type Store interface {
	// FindByEmail returns the account for the email, or ErrNotFound
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// ExistsByEmail reports whether an account exists for the email
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create inserts a new account and returns it with ID and
	// timestamps populated. Returns ErrDuplicate when the email is taken.
	Create(ctx context.Context, account *Account) (*Account, error)

	// UpdateStatus transitions an account's lifecycle state
	UpdateStatus(ctx context.Context, email string, status Status) error

	// TouchLastLogin records a successful login timestamp
	TouchLastLogin(ctx context.Context, email string) error

	// List returns all accounts ordered by creation time
	List(ctx context.Context) ([]*Account, error)

	// Delete removes an account permanently
	Delete(ctx context.Context, email string) error
}
