// Package start provides the entry node every workflow begins at.
package start

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
	return models.NodeTypeStart
}

func (f *Factory) Name() string {
	return "Start"
}

func (f *Factory) Description() string {
	return "Marks the workflow entry point and seeds the execution context with the initial input."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"initial_context": map[string]any{
				"type":        "object",
				"description": "Static values merged into the execution context before any other node runs.",
			},
		},
	}
}
