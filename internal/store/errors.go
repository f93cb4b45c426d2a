package store

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateID  = errors.New("duplicate rule id")
	ErrDuplicateURL = errors.New("duplicate http output url")
	ErrOutOfRange   = errors.New("value out of range")
	ErrInvalid      = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// ValidationError reports input rejected by a store. The store is left
// unchanged whenever one is returned.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, kind error, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...), Err: kind}
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
