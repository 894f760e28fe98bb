// Package end provides the terminal node that closes a workflow path.
package end

import (
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

type Factory struct{}

func NewFactory() protocol.HandlerFactory {
	return &Factory{}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Handler, error) {
	return &Node{}, nil
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeEnd
}

func (f *Factory) Name() string {
	return "End"
}

func (f *Factory) Description() string {
	return "Marks a terminal point of the workflow. Reaching it completes the path."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"result_key": map[string]any{
				"type":        "string",
				"description": "Optional context key whose value is surfaced as the workflow result.",
			},
		},
	}
}
