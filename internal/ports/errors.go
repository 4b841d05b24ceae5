package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors raised by backend dispatch.
var (
	// ErrRateLimited indicates that the provider rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the provider is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that a dispatch timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the provider returned an
	// empty or undecodable body.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates that provider authentication
	// failed.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// DispatchError represents a failed dispatch to one backend. It carries
// the backend identifier so callers can surface the failure as data on
// that backend's slot without disturbing sibling dispatches.
type DispatchError struct {
	// BackendID identifies the backend whose dispatch failed.
	BackendID string

	// Operation names the failed operation, "complete" or "stream".
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for DispatchError.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch error: backend=%s, operation=%s, err=%v", e.BackendID, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *DispatchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is temporary and the dispatch
// could succeed on a later attempt. Authentication and request-shape
// failures are permanent.
func (e *DispatchError) Retryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewDispatchError creates a DispatchError for the given backend.
func NewDispatchError(backendID, operation string, err error) *DispatchError {
	return &DispatchError{BackendID: backendID, Operation: operation, Err: err}
}
