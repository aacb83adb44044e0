// Package apperr defines the error taxonomy shared by the pipeline and its transports.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for the caller.
type Kind int

const (
	// KindUnknown is any error that does not carry a Kind.
	KindUnknown Kind = iota
	// KindInvalidInput is a malformed or missing request field.
	KindInvalidInput
	// KindMissingCredential means no API key was supplied or configured.
	KindMissingCredential
	// KindAuth means the upstream service rejected the API key.
	KindAuth
	// KindUpstream is a network or service failure of an external collaborator.
	KindUpstream
	// KindResourceLimit is a file or text size ceiling.
	KindResourceLimit
	// KindNotFound is an unknown session.
	KindNotFound
	// KindConflict is a pipeline precondition that does not hold yet.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindMissingCredential:
		return "missing_credential"
	case KindAuth:
		return "auth_error"
	case KindUpstream:
		return "upstream_error"
	case KindResourceLimit:
		return "resource_limit"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a classified error with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err and attaches a message.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message for err.
// Classified errors expose only their own message; the wrapped cause stays in logs.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// HTTPStatus maps a Kind to its response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput, KindMissingCredential, KindResourceLimit:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
