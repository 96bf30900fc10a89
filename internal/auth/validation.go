package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is bcrypt's input limit. Longer passwords would be
	// silently truncated.
	MaxPasswordBytes = 72

	MinNameLength = 2
	MaxNameLength = 100
)

var (
	ErrWeakPassword = errors.New("password does not meet policy")
	ErrInvalidName  = fmt.Errorf("full name must be %d-%d characters", MinNameLength, MaxNameLength)
)

// ValidatePassword enforces the password policy before hashing.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("%w: must be at most %d bytes", ErrWeakPassword, MaxPasswordBytes)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		return fmt.Errorf("%w: must contain a letter", ErrWeakPassword)
	}
	if !hasDigit {
		return fmt.Errorf("%w: must contain a digit", ErrWeakPassword)
	}
	return nil
}

var emailCaser = cases.Lower(language.Und)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return emailCaser.String(norm.NFC.String(strings.TrimSpace(email)))
}

var nameCleaner = transform.Chain(
	norm.NFC,
	runes.Remove(runes.In(unicode.Cc)),
)

// NormalizeName composes Unicode, drops control characters and collapses
// whitespace runs.
func NormalizeName(name string) string {
	cleaned, _, err := transform.String(nameCleaner, name)
	if err != nil {
		cleaned = name
	}
	return strings.Join(strings.Fields(cleaned), " ")
}

// ValidateName checks a normalized full name.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinNameLength || n > MaxNameLength {
		return ErrInvalidName
	}
	return nil
}
