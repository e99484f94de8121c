package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/campusgate/campusgate/pkg/accounts"
	"github.com/campusgate/campusgate/pkg/observability"
)

// ExternalIdentity is the result of verifying a third-party ID token
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
}

// IdentityVerifier verifies a third-party identity token: issuer against
// the allow-list, expiry, and audience against the registered client IDs.
// Implemented by pkg/sso.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*ExternalIdentity, error)
}

// LoginResult is the successful outcome of either login protocol.
// Email and Provisioned inform the transport layer's metrics and audit
// records and never leave the process.
type LoginResult struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`

	Email       string `json:"-"`
	Provisioned bool   `json:"-"`
}

// Service validates credentials against the account store and issues
// session tokens. Both login protocols terminate in the same issuance
// step through the codec.
type Service struct {
	store    accounts.Store
	codec    *Codec
	verifier IdentityVerifier
	tokenTTL time.Duration
	logger   *observability.Logger

	// now is the clock, swappable in tests
	now func() time.Time
}

// NewService creates an authentication service. verifier may be nil when
// third-party login is not configured; GoogleLogin then fails closed.
func NewService(store accounts.Store, codec *Codec, verifier IdentityVerifier, tokenTTL time.Duration, logger *observability.Logger) *Service {
	return &Service{
		store:    store,
		codec:    codec,
		verifier: verifier,
		tokenTTL: tokenTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// PasswordLogin authenticates an email/password pair and issues a token.
//
// The store lookup and the bcrypt comparison both run before any
// account-state decision: on an unknown identifier a comparison against a
// fixed dummy hash burns the same time as a real check, and the status
// check happens only after the credential check succeeds, so neither
// timing nor error text reveals whether the identifier exists.
func (s *Service) PasswordLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, NewError(KindBadInput, "email and password are required")
	}

	account, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, accounts.ErrNotFound) {
		burnPasswordCheck(password)
		return nil, NewError(KindNotFound, "no account for identifier")
	}
	if err != nil {
		return nil, WrapError(KindInternal, "account lookup failed", err)
	}

	if account.PasswordHash == nil || !VerifyPassword(password, *account.PasswordHash) {
		return nil, NewError(KindBadCredentials, "password mismatch")
	}

	if !account.IsActive() {
		return nil, NewError(KindDisabled, "account is not active")
	}

	return s.issue(ctx, account)
}

// GoogleLogin authenticates a Google ID token and issues a session token.
// A first-time identity is auto-provisioned as an active student account
// with no usable password. Only active student accounts may use this
// path; anything else is rejected even when the account exists.
func (s *Service) GoogleLogin(ctx context.Context, rawIDToken string) (*LoginResult, error) {
	if rawIDToken == "" {
		return nil, NewError(KindBadInput, "identity token is required")
	}
	if s.verifier == nil {
		return nil, NewError(KindInvalidIdentityToken, "third-party login is not configured")
	}

	identity, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, WrapError(KindInvalidIdentityToken, "identity token rejected", err)
	}

	return s.LoginWithIdentity(ctx, identity)
}

// LoginWithIdentity completes third-party login for an already verified
// identity. The browser callback flow lands here after the code
// exchange; GoogleLogin delegates here after verifying the raw token.
func (s *Service) LoginWithIdentity(ctx context.Context, identity *ExternalIdentity) (*LoginResult, error) {
	if identity == nil {
		return nil, NewError(KindInvalidIdentityToken, "no verified identity")
	}

	email := strings.TrimSpace(strings.ToLower(identity.Email))
	if email == "" {
		return nil, NewError(KindInvalidIdentityToken, "identity token carries no email")
	}

	provisioned := false
	account, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, accounts.ErrNotFound) {
		account, provisioned, err = s.provision(ctx, email, identity.Name)
	}
	if err != nil {
		return nil, WrapError(KindInternal, "account lookup failed", err)
	}

	// Eligibility is checked on the re-fetched record, not the one we
	// may have just written, so a concurrent role or status change is
	// honored.
	if account.Role != accounts.RoleStudent || !account.IsActive() {
		return nil, NewError(KindNotAllowed, "account is not eligible for third-party login")
	}

	result, err := s.issue(ctx, account)
	if err != nil {
		return nil, err
	}
	result.Provisioned = provisioned
	return result, nil
}

// provision creates a student account for a first-time third-party
// identity, reporting whether this call created it. A duplicate-key
// failure means a concurrent login won the race; the account is
// re-fetched instead of failing.
func (s *Service) provision(ctx context.Context, email, displayName string) (*accounts.Account, bool, error) {
	created, err := s.store.Create(ctx, &accounts.Account{
		Email:       email,
		DisplayName: displayName,
		Role:        accounts.RoleStudent,
		Status:      accounts.StatusActive,
		LoginMethod: accounts.LoginMethodGoogle,
	})
	if errors.Is(err, accounts.ErrDuplicate) {
		s.logger.WithField("email", email).Debug("concurrent provisioning detected, refetching account")
		account, err := s.store.FindByEmail(ctx, email)
		return account, false, err
	}
	if err != nil {
		return nil, false, err
	}
	s.logger.WithField("email", email).Info("auto-provisioned student account from third-party login")
	return created, true, nil
}

// issue mints a session token and records the login time. The last-login
// write is best effort; a failure is logged but does not fail the login.
func (s *Service) issue(ctx context.Context, account *accounts.Account) (*LoginResult, error) {
	token, err := s.codec.Issue(account.Email, s.now(), s.tokenTTL)
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchLastLogin(ctx, account.Email); err != nil {
		s.logger.WithError(err).WithField("email", account.Email).Warn("failed to record login time")
	}

	return &LoginResult{Token: token, TokenType: TokenType, Email: account.Email}, nil
}

// ResolvePrincipal maps a validated token subject back to its account.
// Returns nil (no error) when the account is missing or inactive; the
// caller proceeds unauthenticated and the access policy decides the
// request's fate. Revoked principals fail here even when their token has
// not expired.
func (s *Service) ResolvePrincipal(ctx context.Context, subject string) (*accounts.Account, error) {
	account, err := s.store.FindByEmail(ctx, subject)
	if errors.Is(err, accounts.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, nil
	}
	return account, nil
}
