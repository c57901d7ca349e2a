package entity

import (
	"errors"
	"fmt"
)

// ErrValidationFailed indicates that validation checks have failed.
var ErrValidationFailed = errors.New("validation failed")

// ValidationError represents a validation error with detailed field information.
// It matches ErrValidationFailed through errors.Is so callers can branch on the
// category without caring which field failed.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Is reports whether target is ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
