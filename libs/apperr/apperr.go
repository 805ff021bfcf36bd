// Package apperr holds the error kinds shared by every service. Domain errors wrap
// one of the kinds so callers can classify them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation rejects a command synchronously; nothing changed.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means a version mismatch or a transition out of a terminal state.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
	// ErrTransient covers store and bus outages. The operation may be retried.
	ErrTransient = errors.New("transient failure")
	// ErrPoison marks a payload that can never be decoded.
	ErrPoison = errors.New("poison message")
)

func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func Transient(format string, args ...any) error {
	return wrap(ErrTransient, format, args...)
}

func Poison(format string, args ...any) error {
	return wrap(ErrPoison, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Retryable reports whether repeating the same operation could succeed.
// Validation, not-found and poison errors are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrPoison):
		return false
	default:
		return true
	}
}
