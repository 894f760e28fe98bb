// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDefinitionNotFound indicates no workflow definition exists for the
	// given identifier (or identifier/version pair).
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrExecutionNotFound indicates a workflow execution was not found.
	ErrExecutionNotFound = errors.New("workflow execution not found")

	// ErrStepNotFound indicates a step execution was not found.
	ErrStepNotFound = errors.New("step execution not found")

	// ErrDefinitionInactive indicates the referenced definition exists but
	// is not active and cannot start new executions.
	ErrDefinitionInactive = errors.New("workflow definition is not active")
)

// StoreError wraps storage errors with operation context.
type StoreError struct {
	Op     string // Operation being performed (e.g. "SaveExecution")
	Entity string // Entity kind ("definition", "execution", "step")
	ID     string // Entity id if applicable
	Err    error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}

	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a storage error with context.
func NewStoreError(op, entity, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Err: err}
}

// IsDefinitionNotFound checks if an error indicates a missing definition.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsStepNotFound checks if an error indicates a missing step execution.
func IsStepNotFound(err error) bool {
	return errors.Is(err, ErrStepNotFound)
}
