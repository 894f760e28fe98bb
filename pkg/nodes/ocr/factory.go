// Package ocr provides the document extraction node. It submits a
// document to an OCR service and stores the extracted fields in the
// execution context.
package ocr

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
	return models.NodeTypeOCR
}

func (f *Factory) Name() string {
	return "OCR"
}

func (f *Factory) Description() string {
	return "Extracts structured fields from a document through an OCR service."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"service_url": map[string]any{
				"type":        "string",
				"description": "OCR service endpoint.",
			},
			"document": map[string]any{
				"type":        "string",
				"description": "Document reference to process. Supports {context.key} placeholders.",
			},
			"timeout": map[string]any{
				"type":    "number",
				"minimum": 1,
				"maximum": 600,
			},
			"result_key": map[string]any{
				"type":        "string",
				"description": "Context key the extracted fields are written to. Defaults to the node ID.",
			},
		},
		"required": []string{"service_url", "document"},
	}
}
