package models

import "time"

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// StepStatus represents the state machine of a single step execution.
type StepStatus string

// The scheduler dispatches an eligible step in the same loop iteration
// that made it eligible, so "ready" never persists in-process; it is part
// of the status vocabulary for external consumers of step records.
// Joins waiting on incoming branches are "blocked" with BlockedBy listing
// the unmet predecessors.
const (
	StepStatusPending   StepStatus = "pending"
	StepStatusReady     StepStatus = "ready"
	StepStatusRunning   StepStatus = "running"
	StepStatusPaused    StepStatus = "paused"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusBlocked   StepStatus = "blocked"
)

// Terminal reports whether the step record is immutable from here on.
func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed || s == StepStatusSkipped
}

// Waiting reports whether the step has not started and may still be
// dispatched or skipped.
func (s StepStatus) Waiting() bool {
	return s == StepStatusPending || s == StepStatusReady || s == StepStatusBlocked
}

// WorkflowExecution is one instantiation of a workflow definition version
// against a specific business input.
type WorkflowExecution struct {
	ID                  string          `json:"id"`
	WorkflowID          string          `json:"workflow_id"          validate:"required"`
	WorkflowVersion     int             `json:"workflow_version"`
	Status              ExecutionStatus `json:"status"`
	Context             map[string]any  `json:"context"`
	InputData           map[string]any  `json:"input_data,omitempty"`
	ErrorMessage        string          `json:"error_message,omitempty"`
	PreviousExecutionID *string         `json:"previous_execution_id,omitempty"`
	StartedAt           time.Time       `json:"started_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
}

// StepExecution is one node's execution record within an execution.
// BlockedBy lists currently unmet predecessor node ids, maintained for the
// read model consumed by the graph view.
type StepExecution struct {
	ID           string         `json:"id"`
	ExecutionID  string         `json:"execution_id"`
	NodeID       string         `json:"node_id"`
	NodeType     NodeType       `json:"node_type"`
	Status       StepStatus     `json:"status"`
	Output       map[string]any `json:"output,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Progress     *int           `json:"progress,omitempty"`
	RetryCount   int            `json:"retry_count"`
	BlockedBy    []string       `json:"blocked_by,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Decision is the verdict supplied when resuming a paused step.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Valid reports whether the decision is one of the known verdicts.
func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}
