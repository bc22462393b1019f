package chat

import (
	"errors"
	"fmt"
)

// ErrOperatorNotFound is returned when a request names an unknown operator.
var ErrOperatorNotFound = errors.New("chat: operator not found")

// ValidationError rejects malformed client input before anything is stored.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("chat: invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
