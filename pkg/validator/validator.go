package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/amirk1998/daybook/pkg/errors"
)

const DateLayout = "2006-01-02"

var (
	// Username: 3-30 alphanumeric characters and underscores
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

	// Email: basic email validation
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// ValidateUsername checks if username is valid and safe
func (v *Validator) ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return errors.NewAppError(errors.ErrInvalidUsername, errors.ErrInvalidUsername.Error(), 400)
	}
	return nil
}

// ValidateEmail checks if email format is valid
func (v *Validator) ValidateEmail(email string) error {
	if len(email) == 0 || len(email) > 255 || !emailRegex.MatchString(email) {
		return errors.NewAppError(errors.ErrInvalidEmail, "email must be a valid email address", 400)
	}
	return nil
}

// ValidatePassword checks password length bounds. Strength rules are
// left to the client; the hash cost carries the protection.
func (v *Validator) ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < 6 || n > 128 {
		return errors.NewAppError(errors.ErrWeakPassword, errors.ErrWeakPassword.Error(), 400)
	}
	return nil
}

// SanitizeString removes dangerous characters and null bytes
func (v *Validator) SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Trim whitespace
	input = strings.TrimSpace(input)

	return input
}

// Required fails when value is empty after trimming.
func (v *Validator) Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.Validation(fmt.Sprintf("%s is required", field))
	}
	return nil
}

func (v *Validator) MinLength(field, value string, min int) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < min {
		return errors.Validation(fmt.Sprintf("%s must be at least %d characters", field, min))
	}
	return nil
}

func (v *Validator) MaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) > max {
		return errors.Validation(fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return nil
}

// FixedDigits requires exactly n ASCII digits, e.g. a 4-digit PIN.
func (v *Validator) FixedDigits(field, value string, n int) error {
	if len(value) != n {
		return errors.Validation(fmt.Sprintf("%s must be exactly %d digits", field, n))
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return errors.Validation(fmt.Sprintf("%s must be exactly %d digits", field, n))
		}
	}
	return nil
}

func (v *Validator) OneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.Validation(fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// Date validates a YYYY-MM-DD calendar date.
func (v *Validator) Date(field, value string) error {
	if _, err := time.Parse(DateLayout, value); err != nil {
		return errors.Validation(fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field))
	}
	return nil
}

func (v *Validator) Color(field, value string) error {
	if !hexColorRegex.MatchString(value) {
		return errors.Validation(fmt.Sprintf("%s must be a hex color like #1a2b3c", field))
	}
	return nil
}

// First returns the first non-nil error, letting callers chain checks
// in the order they should be reported.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
