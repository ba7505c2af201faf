// internal/app/system/auth/password.go
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for new hashes.
const BcryptCost = 12

// MinPasswordLen is the shortest password an account may set.
const MinPasswordLen = 8

// ErrBadPassword is returned by CheckPassword for a mismatch.
var ErrBadPassword = errors.New("password does not match")

// ValidatePassword checks a new password against the length rule.
func ValidatePassword(plain string) error {
	if len(plain) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}
	return nil
}

// HashPassword returns a bcrypt hash of plain.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password is empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword compares plain against hash.
func CheckPassword(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrBadPassword
	default:
		return fmt.Errorf("check password: %w", err)
	}
}
