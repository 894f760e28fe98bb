// Package services implements the application layer between the HTTP
// handlers and the engine and store.
package services

import (
	"errors"
	"fmt"
)

// Validation errors map to HTTP 400.
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrNodesRequired        = errors.New("workflow must have at least one node")
	ErrStartNodeRequired    = errors.New("workflow must have exactly one start node")
	ErrEndNodeRequired      = errors.New("workflow must have at least one end node")
)

// Conflict errors map to HTTP 409.
var (
	ErrWorkflowInactive = errors.New("workflow is not active")
)

// ServiceError wraps service-level errors with operation context.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should surface as HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrStartNodeRequired) ||
		errors.Is(err, ErrEndNodeRequired)
}

// IsConflictError checks if an error should surface as HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowInactive)
}

// NewValidationError creates a validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
