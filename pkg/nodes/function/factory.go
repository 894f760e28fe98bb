// Package function provides the scripted transformation node. The
// configured Go snippet runs in an embedded interpreter with the
// execution context as input.
package function

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
	return models.NodeTypeFunction
}

func (f *Factory) Name() string {
	return "Function"
}

func (f *Factory) Description() string {
	return "Runs an interpreted Go snippet that transforms the execution context."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"source": map[string]any{
				"type":        "string",
				"description": "Go source defining Run(ctx map[string]any) (map[string]any, error). The returned map is merged into the execution context.",
			},
			"timeout_seconds": map[string]any{
				"type":    "number",
				"minimum": 1,
				"maximum": 60,
			},
		},
		"required": []string{"source"},
	}
}
