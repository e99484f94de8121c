package auth

import "fmt"

// Kind tags an authentication failure so the transport boundary can map
// it to a status code exactly once.
type Kind int

const (
	// KindBadInput marks malformed or missing request fields (400)
	KindBadInput Kind = iota

	// KindNotFound marks an unknown identifier. Publicly indistinguishable
	// from KindBadCredentials; the split exists for logs and audit only.
	KindNotFound

	// KindBadCredentials marks a failed password comparison (400, generic)
	KindBadCredentials

	// KindDisabled marks an inactive account with correct credentials (400)
	KindDisabled

	// KindInvalidIdentityToken marks a rejected third-party token (400)
	KindInvalidIdentityToken

	// KindNotAllowed marks a principal whose role or status is not
	// eligible for the attempted login path (403)
	KindNotAllowed

	// KindInternal marks store or signing failures (500)
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindBadInput:
		return "bad_input"
	case KindNotFound:
		return "not_found"
	case KindBadCredentials:
		return "bad_credentials"
	case KindDisabled:
		return "account_disabled"
	case KindInvalidIdentityToken:
		return "invalid_identity_token"
	case KindNotAllowed:
		return "not_allowed"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a tagged authentication failure. Message is safe to log;
// PublicMessage is what the API may return to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// PublicMessage returns the message exposed at the HTTP boundary. Unknown
// identifier and wrong password yield the same text so responses cannot
// be used to enumerate accounts.
func (e *Error) PublicMessage() string {
	switch e.Kind {
	case KindNotFound, KindBadCredentials:
		return "invalid credentials"
	case KindDisabled:
		return "account is disabled"
	case KindInvalidIdentityToken:
		return "invalid identity token"
	case KindNotAllowed:
		return "not allowed to login"
	case KindInternal:
		return "internal server error"
	default:
		return e.Message
	}
}

// NewError creates a tagged authentication error
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError tags an underlying error with a kind
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
