package models

import "time"

// NodeState is the per-node entry of the workflow-state read model the
// graph view polls. It mirrors the step execution record.
type NodeState struct {
	NodeID       string     `json:"node_id"`
	NodeType     NodeType   `json:"node_type"`
	Status       StepStatus `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Progress     *int       `json:"progress,omitempty"`
	RetryCount   int        `json:"retry_count,omitempty"`
	BlockedBy    []string   `json:"blocked_by,omitempty"`
}

// ExecutionStats aggregates step counts for the read model header.
// Progress is the percentage of steps in a terminal state.
type ExecutionStats struct {
	Progress  int `json:"progress"`
	Completed int `json:"completed"`
	Running   int `json:"running"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

// WorkflowState is the read model returned by the workflow-state query.
type WorkflowState struct {
	ExecutionID string          `json:"execution_id"`
	Status      ExecutionStatus `json:"status"`
	Nodes       []NodeState     `json:"nodes"`
	Stats       ExecutionStats  `json:"stats"`
}

// BuildWorkflowState assembles the read model from an execution and its
// step records. Steps map to node states one to one.
func BuildWorkflowState(execution *WorkflowExecution, steps []*StepExecution) *WorkflowState {
	state := &WorkflowState{
		ExecutionID: execution.ID,
		Status:      execution.Status,
		Nodes:       make([]NodeState, 0, len(steps)),
	}

	terminal := 0

	for _, step := range steps {
		state.Nodes = append(state.Nodes, NodeState{
			NodeID:       step.NodeID,
			NodeType:     step.NodeType,
			Status:       step.Status,
			StartedAt:    step.StartedAt,
			CompletedAt:  step.CompletedAt,
			ErrorMessage: step.ErrorMessage,
			Progress:     step.Progress,
			RetryCount:   step.RetryCount,
			BlockedBy:    step.BlockedBy,
		})

		switch step.Status {
		case StepStatusCompleted, StepStatusSkipped:
			state.Stats.Completed++
			terminal++
		case StepStatusFailed:
			state.Stats.Failed++
			terminal++
		case StepStatusRunning, StepStatusPaused:
			state.Stats.Running++
		case StepStatusPending, StepStatusReady, StepStatusBlocked:
			state.Stats.Pending++
		}
	}

	if len(steps) > 0 {
		state.Stats.Progress = terminal * 100 / len(steps)
	}

	return state
}
