// Package apperr defines the error taxonomy shared by the storage layer,
// the planner and the API: validation failures, missing rows, duplicate
// selections and storage faults map to distinct kinds so callers can
// branch with errors.As and the API layer can pick a status code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

const (
	// KindValidation marks malformed or out-of-range input.
	KindValidation Kind = iota + 1
	// KindNotFound marks an operation whose target row does not exist.
	KindNotFound
	// KindConflict marks a duplicate that the caller may accept.
	KindConflict
	// KindStorage marks a database fault; the operation was rolled back.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error carries a kind, a user-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation creates a validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a database fault.
func Storage(err error, format string, args ...any) *Error {
	return &Error{Kind: KindStorage, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind of err, or zero if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
