package onec

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a back-end failure
type ErrorKind int

const (
	// KindUnauthorized means the back-end rejected the credential (HTTP 401)
	KindUnauthorized ErrorKind = iota

	// KindUnavailable means the back-end could not be reached, timed out,
	// or answered with a 5xx
	KindUnavailable

	// KindProtocol means the back-end answered with a malformed JSON-RPC
	// envelope or a JSON-RPC error object
	KindProtocol
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindUnavailable:
		return "unavailable"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// BackendError is a classified back-end failure
type BackendError struct {
	Kind    ErrorKind
	Message string
	Err     error // underlying cause, may be nil

	// Code is the JSON-RPC error code when Kind is KindProtocol and the
	// back-end returned a structured error object
	Code int
}

// Error implements the error interface
func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("backend %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewUnauthorizedError creates an unauthorized back-end error
func NewUnauthorizedError(message string) *BackendError {
	return &BackendError{Kind: KindUnauthorized, Message: message}
}

// NewUnavailableError creates an unavailable back-end error
func NewUnavailableError(message string, err error) *BackendError {
	return &BackendError{Kind: KindUnavailable, Message: message, Err: err}
}

// NewProtocolError creates a protocol back-end error
func NewProtocolError(message string, err error) *BackendError {
	return &BackendError{Kind: KindProtocol, Message: message, Err: err}
}

// IsUnauthorized reports whether err is a back-end unauthorized error
func IsUnauthorized(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Kind == KindUnauthorized
}

// IsUnavailable reports whether err is a back-end unavailable error
func IsUnavailable(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Kind == KindUnavailable
}

// IsProtocolError reports whether err is a back-end protocol error
func IsProtocolError(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Kind == KindProtocol
}
