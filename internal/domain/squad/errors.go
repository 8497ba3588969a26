package squad

import (
	"errors"
	"fmt"
)

// Sentinel kinds for squad validation errors.
var (
	ErrValidation    = errors.New("validation error")
	ErrInvalidBudget = fmt.Errorf("%w: invalid budget", ErrValidation)
)

// ValidationError describes why an input was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
