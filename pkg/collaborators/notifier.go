package collaborators

import (
	"context"
	"log/slog"
	"time"
)

// ApprovalRequest is the out-of-band alert sent when an approval-type node
// pauses. StepExecutionID is the resume token the approver's decision must
// present to continue-workflow.
type ApprovalRequest struct {
	ExecutionID     string         `json:"execution_id"`
	StepExecutionID string         `json:"step_execution_id"`
	WorkflowID      string         `json:"workflow_id"`
	NodeID          string         `json:"node_id"`
	ApproverGroup   string         `json:"approver_group"`
	Summary         string         `json:"summary,omitempty"`
	RequestedAt     time.Time      `json:"requested_at"`
}

// ApprovalNotifier alerts approvers that a step is waiting on them.
type ApprovalNotifier interface {
	NotifyPending(ctx context.Context, request ApprovalRequest) error
}

// LogNotifier records approval requests on the logger. Used in development
// and tests.
type LogNotifier struct {
	logger *slog.Logger

	Requests []ApprovalRequest
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyPending(_ context.Context, request ApprovalRequest) error {
	n.Requests = append(n.Requests, request)
	n.logger.Info("Approval pending",
		"execution_id", request.ExecutionID,
		"step_execution_id", request.StepExecutionID,
		"approver_group", request.ApproverGroup)

	return nil
}
