package signature

import (
	"context"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/template"
)

type Node struct{}

func (n *Node) Execute(_ context.Context, input protocol.Input) (*models.Outcome, error) {
	snapshot := input.Context.Snapshot()

	output := map[string]any{"awaiting_signature": true}

	if key, ok := input.Node.Data["document_key"].(string); ok && key != "" {
		output["document"] = template.RenderValue(key, snapshot)
	}

	if signer, ok := input.Node.Data["signer_email"].(string); ok && signer != "" {
		output["signer"] = template.RenderString(signer, snapshot)
	}

	return models.Paused(input.StepExecutionID, output), nil
}
