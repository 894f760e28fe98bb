// Package webhook provides the integration node that calls an external
// HTTP endpoint and records the response in the execution context.
package webhook

import (
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

type Factory struct{}

func NewFactory() protocol.HandlerFactory {
	return &Factory{}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Handler, error) {
	return &Node{logger: deps.Logger}, nil
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeWebhook
}

func (f *Factory) Name() string {
	return "Webhook"
}

func (f *Factory) Description() string {
	return "Calls an external HTTP endpoint. Server errors are retried; client errors fail immediately."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Target URL. Supports {context.key} placeholders.",
			},
			"method": map[string]any{
				"type": "string",
				"enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers": map[string]any{
				"type": "object",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body. Supports {context.key} placeholders.",
			},
			"timeout": map[string]any{
				"type":    "number",
				"minimum": 1,
				"maximum": 300,
			},
			"retries": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"attempts": map[string]any{"type": "number", "minimum": 1, "maximum": 10},
					"delay":    map[string]any{"type": "number", "minimum": 0, "maximum": 30000},
				},
			},
			"result_key": map[string]any{
				"type":        "string",
				"description": "Context key the response is written to. Defaults to the node ID.",
			},
		},
		"required": []string{"url"},
	}
}
