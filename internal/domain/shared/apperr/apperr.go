// Package apperr defines the error categories shared by every domain package.
// Concrete errors unwrap to one of the sentinels so adapters can map them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrAvailability  = errors.New("dates unavailable")
	ErrStateConflict = errors.New("state conflict")
	ErrForbidden     = errors.New("forbidden")
)

// ValidationError reports a malformed or out-of-range input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for the given field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ResourceError is returned for missing or foreign resources.
type ResourceError struct {
	Kind string
	ID   string
	err  error
}

func (e *ResourceError) Error() string {
	switch e.err {
	case ErrForbidden:
		return fmt.Sprintf("%s %s: access denied", e.Kind, e.ID)
	default:
		return fmt.Sprintf("%s %s: not found", e.Kind, e.ID)
	}
}

func (e *ResourceError) Unwrap() error { return e.err }

func NotFound(kind, id string) error {
	return &ResourceError{Kind: kind, ID: id, err: ErrNotFound}
}

func Forbidden(kind, id string) error {
	return &ResourceError{Kind: kind, ID: id, err: ErrForbidden}
}
