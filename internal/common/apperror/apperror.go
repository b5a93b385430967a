// internal/common/apperror/apperror.go
// Typed errors shared by every client component.
// Call sites wrap backend failures with a Kind so the presentation layer can pick an alert.

package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the user should be told about it
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindUnauthorized
	KindValidation
	KindForbidden
	KindNotFound
	KindConflict
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is an application error with a kind, a message and an optional cause
type Error struct {
	Kind    Kind
	Message string
	Status  int // HTTP status when the error came from the backend
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an application error
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap wraps an existing error
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation is shorthand for a client-side validation failure
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func IsNetwork(err error) bool      { return KindOf(err) == KindNetwork }
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }
func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsForbidden(err error) bool    { return KindOf(err) == KindForbidden }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }

// UserMessage converts err into the text shown in an alert
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		return "Something went wrong. Please try again."
	}

	switch appErr.Kind {
	case KindNetwork:
		return "Network error. Please check your connection and try again."
	case KindUnauthorized:
		return "Your session has expired. Please sign in again."
	case KindValidation:
		return appErr.Message
	case KindForbidden:
		if appErr.Message != "" {
			return appErr.Message
		}
		return "You are not allowed to do that."
	case KindNotFound:
		return "This content is no longer available."
	default:
		if appErr.Status != 0 && appErr.Message != "" {
			return appErr.Message
		}
		return "Something went wrong. Please try again."
	}
}
