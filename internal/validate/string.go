// Package validate provides input validation and sanitization helpers
// shared by the API handlers and domain services.
package validate

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors.
var (
	ErrEmpty             = errors.New("string is empty")
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum rune count (0 = no minimum)
	MaxLength      int            // Maximum rune count (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional pattern the whole string must match
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates s against the constraints and returns the (optionally
// trimmed) value.
func String(s string, c StringConstraints) (string, error) {
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !c.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)
	if c.MinLength > 0 && length < c.MinLength {
		return "", ErrStringTooShort
	}
	if c.MaxLength > 0 && length > c.MaxLength {
		return "", ErrStringTooLong
	}

	if c.AllowedPattern != nil && !c.AllowedPattern.MatchString(s) {
		return "", ErrInvalidCharacters
	}

	return s, nil
}

// displayNamePattern allows letters, numbers, spaces, and limited
// punctuation for song and form names.
var displayNamePattern = regexp.MustCompile(`^[\pL\pN\s\-_'.&()!]+$`)

// MaxDisplayNameLength caps song and form names.
const MaxDisplayNameLength = 120

// DisplayName validates a user-supplied song or form name and returns it
// trimmed and HTML-escaped.
func DisplayName(name string) (string, error) {
	validated, err := String(name, StringConstraints{
		MinLength:      1,
		MaxLength:      MaxDisplayNameLength,
		AllowedPattern: displayNamePattern,
		TrimSpace:      true,
	})
	if err != nil {
		return "", err
	}
	return html.EscapeString(validated), nil
}
