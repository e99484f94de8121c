package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType is the scheme clients present the token under
const TokenType = "Bearer"

// minSigningKeyLen is the minimum accepted HMAC key length in bytes
const minSigningKeyLen = 32

// ErrInvalidToken is returned by Codec.Validate for every failure mode:
// bad signature, wrong issuer, expiry, and malformed input. Callers get
// no further detail; the distinctions only matter for logs.
var ErrInvalidToken = errors.New("invalid token")

// Secret is a string type that redacts its value in String(), GoString(),
// and MarshalText() to keep the signing key out of logs and serialized
// output. The raw value is only reachable through Value().
type Secret string

const secretRedacted = "[REDACTED]"

func (s Secret) String() string   { return secretRedacted }
func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string
func (s Secret) Value() string { return string(s) }

// MarshalText implements encoding.TextMarshaler with the redacted form
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// Codec issues and validates the portal's signed session tokens.
// It is a pure function of its configuration and the clock; Codec values
// are safe for concurrent use.
type Codec struct {
	signingKey Secret
	issuer     string

	// now is the clock, swappable in tests
	now func() time.Time
}

// NewCodec creates a token codec. The signing key must be at least 32
// bytes; shorter keys make HS256 brute-forceable.
func NewCodec(signingKey Secret, issuer string) (*Codec, error) {
	if len(signingKey.Value()) < minSigningKeyLen {
		return nil, errors.New("auth: signing key must be at least 32 bytes")
	}
	if issuer == "" {
		return nil, errors.New("auth: token issuer must not be empty")
	}
	return &Codec{
		signingKey: signingKey,
		issuer:     issuer,
		now:        time.Now,
	}, nil
}

// Issue produces a signed token for the subject. The signature covers
// issuer, subject, issued-at, and expiry; the signing key is never
// embedded in the token.
func (c *Codec) Issue(subject string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.signingKey.Value()))
	if err != nil {
		return "", WrapError(KindInternal, "failed to sign token", err)
	}
	return signed, nil
}

// Validate verifies the token's signature, issuer, and expiry and returns
// the subject identifier. Every failure, including malformed input,
// returns an error wrapping ErrInvalidToken; Validate never panics.
//
// Expiry is exclusive: a token whose expiry equals the current instant is
// already expired. No leeway is applied.
func (c *Codec) Validate(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrInvalidToken
	}

	// WithValidMethods pins HS256 so an attacker cannot downgrade to
	// alg:none or present an asymmetric token.
	parsed, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return []byte(c.signingKey.Value()), nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	// jwt's expiry check is strict (valid iff now < exp) but re-assert
	// the boundary here so the contract does not depend on library
	// internals.
	if claims.ExpiresAt == nil || !c.now().Before(claims.ExpiresAt.Time) {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
