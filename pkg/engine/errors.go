package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrExecutionNotResumable = errors.New("execution is not resumable")
	ErrStepNotPaused         = errors.New("step is not paused")
	ErrInvalidDecision       = errors.New("decision must be approved or rejected")
	ErrExecutionNotFailed    = errors.New("only failed executions can be retried")
)

// NodeExecutionError wraps a handler failure with the node it happened on.
type NodeExecutionError struct {
	ExecutionID string
	NodeID      string
	NodeType    string
	Err         error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s (%s) failed in execution %s: %v", e.NodeID, e.NodeType, e.ExecutionID, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// TimeoutError is raised when a join's wait exceeds its configured limit.
type TimeoutError struct {
	ExecutionID string
	NodeID      string
	Timeout     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("join %s timed out after %s waiting for incoming branches", e.NodeID, e.Timeout)
}

// ResumeValidationError rejects a continue-workflow request that does not
// match a step currently paused.
type ResumeValidationError struct {
	StepExecutionID string
	Reason          string
	Err             error
}

func (e *ResumeValidationError) Error() string {
	return fmt.Sprintf("cannot resume step %s: %s", e.StepExecutionID, e.Reason)
}

func (e *ResumeValidationError) Unwrap() error {
	return e.Err
}

func (e *ResumeValidationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newResumeError(stepID, reason string, err error) *ResumeValidationError {
	return &ResumeValidationError{StepExecutionID: stepID, Reason: reason, Err: err}
}
