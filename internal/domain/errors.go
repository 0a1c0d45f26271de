// Package domain contains the runtime-agnostic types and errors shared by the
// execution-context lifecycle and its runtime backends.
// Errors here describe lifecycle failures, not backend mechanics; adapters
// translate their native status codes into these types.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrRuntimeFailure indicates the runtime reported a non-OK status for a native call.
	ErrRuntimeFailure = errors.New("runtime failure")

	// ErrRuntimeMissing indicates an operation needed a runtime backend but none was supplied.
	ErrRuntimeMissing = errors.New("runtime backend missing")

	// ErrUnknownBackend indicates a backend name that no registry entry matches.
	ErrUnknownBackend = errors.New("unknown runtime backend")

	// ErrGlobalInstalled indicates the process-wide context was already triggered,
	// so its runtime can no longer be replaced.
	ErrGlobalInstalled = errors.New("global execution context already initialized")

	// ErrClosed indicates use of an options object that was already released.
	ErrClosed = errors.New("resource already released")
)

// RuntimeFailure carries the status a runtime reported for a failed native call.
// Error() is exactly the runtime-supplied message.
type RuntimeFailure struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *RuntimeFailure) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *RuntimeFailure) Unwrap() error {
	return ErrRuntimeFailure
}

// NewRuntimeFailure creates a runtime failure for the given status.
func NewRuntimeFailure(code Code, message string) error {
	return &RuntimeFailure{Code: code, Message: message}
}

// UnknownBackendError names the backend that could not be resolved.
type UnknownBackendError struct {
	Name      string
	Available []string
}

// Error implements the error interface.
func (e *UnknownBackendError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown runtime backend %q", e.Name)
	}

	return fmt.Sprintf("unknown runtime backend %q (available: %v)", e.Name, e.Available)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *UnknownBackendError) Unwrap() error {
	return ErrUnknownBackend
}

// NewUnknownBackendError creates an unknown backend error.
func NewUnknownBackendError(name string, available []string) error {
	return &UnknownBackendError{Name: name, Available: available}
}

// IsRuntimeFailure checks if an error is a runtime failure.
func IsRuntimeFailure(err error) bool {
	return errors.Is(err, ErrRuntimeFailure)
}

// FailureCode extracts the runtime status code from err.
// Returns CodeOK when err is nil and CodeUnknown when err is not a runtime failure.
func FailureCode(err error) Code {
	if err == nil {
		return CodeOK
	}

	var rf *RuntimeFailure
	if errors.As(err, &rf) {
		return rf.Code
	}

	return CodeUnknown
}
