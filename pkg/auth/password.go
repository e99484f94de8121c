package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a bcrypt hash of a random throwaway value. When a login
// targets an unknown identifier, the comparison still runs against this
// hash so the response time does not reveal whether the account exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword produces a bcrypt hash of the plaintext at the default cost
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", WrapError(KindInternal, "failed to hash password", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether the plaintext matches the stored hash.
// bcrypt is deliberately slow and salted; both the mismatch and the
// success path cost the same.
func VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// burnPasswordCheck performs a bcrypt comparison against a fixed hash.
// Used on the unknown-identifier path so its timing matches a real
// credential check.
func burnPasswordCheck(plain string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plain))
}

// ValidatePasswordPolicy enforces the minimal password shape accepted
// when an administrator sets a credential.
func ValidatePasswordPolicy(plain string) error {
	if len(plain) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
