package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure that can cross a kernel boundary.
// Callers never see raw internal errors, only these kinds.
type ErrorKind string

const (
	// KindValidation indicates a malformed memory entry payload.
	KindValidation ErrorKind = "validation_error"
	// KindPermissionDenied indicates a tool outside the capability's
	// allowed set.
	KindPermissionDenied ErrorKind = "permission_denied"
	// KindTimeout indicates a tool exceeded its deadline.
	KindTimeout ErrorKind = "timeout"
	// KindUnrouted indicates no capability matched an objective.
	KindUnrouted ErrorKind = "unrouted"
	// KindIterationCeiling indicates the cycle safeguard triggered.
	KindIterationCeiling ErrorKind = "iteration_ceiling_exceeded"
	// KindToolFailure wraps an underlying tool error.
	KindToolFailure ErrorKind = "tool_failure"
)

// Recoverable returns true if the kind is eligible for bounded
// retry or replanning. Unrouted and iteration-ceiling failures are
// terminal and never retried automatically.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case KindValidation, KindPermissionDenied, KindTimeout, KindToolFailure:
		return true
	default:
		return false
	}
}

// KernelError is the typed error surfaced by the kernel and gateway.
type KernelError struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// ObjectiveID identifies the affected objective, if any.
	ObjectiveID string
	// Phase is the phase in which the failure occurred, if any.
	Phase Phase
	// Message is a human-readable failure detail.
	Message string
	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *KernelError) Error() string {
	if e.ObjectiveID != "" {
		return fmt.Sprintf("%s: objective %s: %s", e.Kind, e.ObjectiveID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *KernelError) Unwrap() error {
	return e.Err
}

// NewError creates a KernelError with the given kind and message.
func NewError(kind ErrorKind, format string, args ...any) *KernelError {
	return &KernelError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind from err. Returns KindToolFailure for
// errors that are not KernelErrors, since every unrecognized failure is
// treated as a wrapped tool-level fault.
func KindOf(err error) ErrorKind {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return KindToolFailure
}
