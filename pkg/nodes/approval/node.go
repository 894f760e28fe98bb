package approval

import (
	"context"
	"log/slog"
	"time"

	"github.com/credenflow/credenflow/pkg/collaborators"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/template"
)

type Node struct {
	notifier collaborators.ApprovalNotifier
	logger   *slog.Logger
}

// Execute notifies the approver group and pauses. The step execution ID
// is the resume token continue-workflow must present.
func (n *Node) Execute(ctx context.Context, input protocol.Input) (*models.Outcome, error) {
	snapshot := input.Context.Snapshot()

	group, _ := input.Node.Data["approver_group"].(string)
	summary := template.RenderString(stringField(input.Node, "summary"), snapshot)

	if n.notifier != nil {
		request := collaborators.ApprovalRequest{
			ExecutionID:     input.ExecutionID,
			StepExecutionID: input.StepExecutionID,
			WorkflowID:      input.Context.WorkflowID,
			NodeID:          input.Node.ID,
			ApproverGroup:   group,
			Summary:         summary,
			RequestedAt:     time.Now().UTC(),
		}

		if err := n.notifier.NotifyPending(ctx, request); err != nil && n.logger != nil {
			// A failed notification must not lose the pause; reviewers
			// can still find the pending step through the API.
			n.logger.Warn("Approval notification failed",
				"step_execution_id", input.StepExecutionID, "error", err)
		}
	}

	output := map[string]any{
		"awaiting_decision": true,
		"approver_group":    group,
	}

	return models.Paused(input.StepExecutionID, output), nil
}

func stringField(node *models.Node, key string) string {
	value, _ := node.Data[key].(string)

	return value
}
