// Package auth handles passwords, sessions and password resets.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"budget/internal/core"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTooShort   = fmt.Errorf("username must be at least %d characters", core.MinUsernameLength)
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", core.MinPasswordLength)
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidResetToken  = errors.New("reset token invalid or expired")
)

// HashPassword hashes password with bcrypt at the given cost. A cost of 0
// uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateRegistration checks username length and the new password.
func ValidateRegistration(username, password, confirm string) error {
	if len([]rune(strings.TrimSpace(username))) < core.MinUsernameLength {
		return ErrUsernameTooShort
	}
	return ValidateNewPassword(password, confirm)
}

// ValidateNewPassword checks length and confirmation.
func ValidateNewPassword(password, confirm string) error {
	if len([]rune(password)) < core.MinPasswordLength {
		return ErrPasswordTooShort
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}
