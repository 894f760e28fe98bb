// Package approval provides the human decision node. Execution pauses
// at this node until continue-workflow delivers an approved or rejected
// decision.
package approval

import (
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

type Factory struct{}

func NewFactory() protocol.HandlerFactory {
	return &Factory{}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Handler, error) {
	return &Node{notifier: deps.Notifier, logger: deps.Logger}, nil
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeApproval
}

func (f *Factory) Name() string {
	return "Approval"
}

func (f *Factory) Description() string {
	return "Pauses the execution until a reviewer approves or rejects. Rejection fails the step."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"approver_group": map[string]any{
				"type":        "string",
				"description": "Reviewer group notified of the pending decision.",
			},
			"summary": map[string]any{
				"type":        "string",
				"description": "Short description shown to reviewers. Supports {context.key} placeholders.",
			},
		},
	}
}
