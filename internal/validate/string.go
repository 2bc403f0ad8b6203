// Package validate provides input validation for values taken from request
// paths and query strings before they are forwarded to the rankings API.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
	ErrInvalidPage       = errors.New("page must be a positive integer")
)

// Limits for request inputs.
const (
	MaxHandleLength     = 255
	MaxStrategyIDLength = 32
)

var (
	// printable rejects control characters, including newlines.
	printable = regexp.MustCompile(`^[^\x00-\x1f\x7f]+$`)
	// strategyIDPattern admits the opaque ids the API uses ("6", "3", ...).
	strategyIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Character count, not byte count
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}
	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// Handle validates a profile handle (e.g. "vitalik.lens").
// Handles are otherwise opaque; the rankings API decides whether they exist.
func Handle(handle string) (string, error) {
	return String(handle, StringConstraints{
		MinLength:      1,
		MaxLength:      MaxHandleLength,
		AllowedPattern: printable,
		TrimSpace:      true,
	})
}

// StrategyID validates a strategy id. Ids outside the catalog are allowed.
func StrategyID(id string) (string, error) {
	return String(id, StringConstraints{
		MinLength:      1,
		MaxLength:      MaxStrategyIDLength,
		AllowedPattern: strategyIDPattern,
		TrimSpace:      true,
	})
}

// Page parses a 1-based page number. An empty value means page 1.
func Page(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPage, raw)
	}
	if page < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidPage, page)
	}
	return page, nil
}
