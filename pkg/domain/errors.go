package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced todo does not exist in the
// collection at lookup time.
var ErrNotFound = errors.New("todo not found")

// NotFoundError carries the id that failed to resolve. It matches ErrNotFound
// under errors.Is.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("todo %s not found", e.ID)
}

// Is reports whether target is ErrNotFound.
func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError reports a caller supplied input that is absent or has the
// wrong shape.
type ValidationError struct {
	// Message is the stable, client facing description for the endpoint.
	Message string
	// Field is the offending input field, when known.
	Field string
	// Detail is the validator's description of the failure.
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Message, e.Field, e.Detail)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
