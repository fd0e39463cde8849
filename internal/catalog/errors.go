// ABOUTME: Validation error type for catalog mutations
// ABOUTME: Distinguishes recoverable bad input from missing-entity failures

package catalog

import (
	"errors"
	"fmt"
)

// ValidationError marks malformed or empty user-supplied input.
// Callers re-prompt within the same workflow state instead of aborting.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// validationf builds a ValidationError from a format string
func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
