package leave

import (
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password the registration form accepts.
const MinPasswordLength = 6

// Registration is a self-service sign-up, checked locally before any
// network call.
type Registration struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	Department      string
	Role            Role
	JoiningDate     time.Time
}

// Validate checks the registration in the order the form reports problems.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrMissingField.With("name")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(r.Email)); err != nil {
		return ErrMissingField.With("a valid email is required")
	}
	if strings.TrimSpace(r.Department) == "" {
		return ErrMissingField.With("department")
	}
	if !r.Role.Valid() {
		return ErrInvalidRole.With("unknown role %q", r.Role)
	}
	if r.JoiningDate.IsZero() {
		return ErrMissingField.With("joiningDate")
	}
	if r.Password != r.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if utf8.RuneCountInString(r.Password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// PasswordStrength scores a password from 0 to 100 in steps of 25:
// length >= 6, length >= 8, an uppercase letter, a digit or symbol.
func PasswordStrength(password string) int {
	score := 0
	n := utf8.RuneCountInString(password)
	if n >= 6 {
		score += 25
	}
	if n >= 8 {
		score += 25
	}
	var upper, digitOrSymbol bool
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case unicode.IsDigit(c), !(c >= 'a' && c <= 'z'):
			digitOrSymbol = true
		}
	}
	if upper {
		score += 25
	}
	if digitOrSymbol {
		score += 25
	}
	return score
}

// StrengthLabel names a PasswordStrength score.
func StrengthLabel(score int) string {
	switch {
	case score < 25:
		return "Very Weak"
	case score < 50:
		return "Weak"
	case score < 75:
		return "Good"
	}
	return "Strong"
}
