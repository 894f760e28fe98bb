package form

import (
	"context"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

type Node struct{}

func (n *Node) Execute(_ context.Context, input protocol.Input) (*models.Outcome, error) {
	output := map[string]any{"awaiting_submission": true}

	if formID, ok := input.Node.Data["form_id"].(string); ok && formID != "" {
		output["form_id"] = formID
	}

	if fields, ok := input.Node.Data["fields"].([]any); ok {
		output["fields"] = fields
	}

	return models.Paused(input.StepExecutionID, output), nil
}
