package auth

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"vivariumcore/pkg/domain"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var errInvalidPassword = errors.New("invalid password")

// HashPassword hashes a password with bcrypt at the given cost.
func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword compares a password with a bcrypt hash.
func CheckPassword(password, hash string) error {
	if len(password) > MaxPasswordBytes {
		return errInvalidPassword
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errInvalidPassword
		}
		return fmt.Errorf("failed to check password: %w", err)
	}
	return nil
}

// ValidatePasswordStrength checks a password against the facility policy: at least
// minLength characters and at most MaxPasswordBytes bytes, containing one letter and one
// digit. Every failure is reported.
func ValidatePasswordStrength(password string, minLength int) []domain.ValidationError {
	var errs []domain.ValidationError
	if password == "" {
		return []domain.ValidationError{domain.RequiredFieldMissing("password")}
	}
	if len([]rune(password)) < minLength {
		errs = append(errs, domain.Custom(fmt.Sprintf("password must be at least %d characters", minLength)))
	}
	if len(password) > MaxPasswordBytes {
		errs = append(errs, domain.Custom(fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes)))
	}
	hasLetter, hasNumber := false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}
	if !hasLetter {
		errs = append(errs, domain.Custom("password must contain at least one letter"))
	}
	if !hasNumber {
		errs = append(errs, domain.Custom("password must contain at least one number"))
	}
	return errs
}
