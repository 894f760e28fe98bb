// Package form provides the data collection node. Execution pauses
// until the submitted form values arrive through continue-workflow.
package form

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
	return models.NodeTypeForm
}

func (f *Factory) Name() string {
	return "Form"
}

func (f *Factory) Description() string {
	return "Pauses the execution until a form submission supplies the requested fields."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"form_id": map[string]any{
				"type":        "string",
				"description": "Identifier of the form presented to the user.",
			},
			"fields": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Field names expected in the resume payload.",
			},
		},
	}
}
