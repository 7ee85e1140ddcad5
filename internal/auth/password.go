package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

// ErrInvalidCredentials is returned for a wrong email/password pair. It does
// not say which half was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ValidatePassword enforces the minimum length; minLen <= 0 uses the default.
func ValidatePassword(password string, minLen int) error {
	if minLen <= 0 {
		minLen = MinPasswordLength
	}
	if len(password) < minLen {
		return fmt.Errorf("password must be at least %d characters", minLen)
	}
	// bcrypt ignores everything past 72 bytes.
	if len(password) > 72 {
		return errors.New("password must be at most 72 bytes")
	}
	return nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares password with a stored hash. A nil hash (an
// account created through Google sign-in) never matches.
func CheckPassword(hash *string, password string) error {
	if hash == nil || *hash == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
