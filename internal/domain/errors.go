package domain

import "fmt"

// Error types for consistent error handling across the gateway.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUpstream indicates a failure in a backend/renderer call.
type ErrUpstream struct {
	Service string
	Err     error
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("upstream error [%s]: %v", e.Service, e.Err)
}

func (e *ErrUpstream) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a resource already exists.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrSessionUnavailable indicates the session lookup itself failed
// (transport error, timeout, breaker open, non-2xx). Callers must treat
// it exactly like "no session" — the gate fails closed — but the named
// kind keeps outages distinguishable in logs and metrics from a user
// who is genuinely logged out.
type ErrSessionUnavailable struct {
	Reason string
	Err    error
}

func (e *ErrSessionUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session lookup unavailable (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session lookup unavailable (%s)", e.Reason)
}

func (e *ErrSessionUnavailable) Unwrap() error {
	return e.Err
}
