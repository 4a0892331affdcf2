package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	ErrMissingField       = errors.New("missing required field")
	ErrMalformedResponse  = errors.New("malformed news response")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrUnauthenticated    = errors.New("user not authenticated")
	ErrBookmarksDisabled  = errors.New("bookmarks are disabled")
	ErrNotFound           = errors.New("not found")
	ErrInvalidBookmarkURL = errors.New("bookmark url is required")
)

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("validation: %s: %s", e.Wrapped, e.Field)
	}
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
