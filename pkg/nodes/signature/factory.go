// Package signature provides the e-signature node. Execution pauses
// until the signing ceremony completes and continue-workflow delivers
// the signed envelope reference.
package signature

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
	return models.NodeTypeSignature
}

func (f *Factory) Name() string {
	return "Signature"
}

func (f *Factory) Description() string {
	return "Pauses the execution until the requested document is signed."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"document_key": map[string]any{
				"type":        "string",
				"description": "Context key holding the document reference to sign. Supports {context.key} placeholders.",
			},
			"signer_email": map[string]any{
				"type":        "string",
				"description": "Signer address. Supports {context.key} placeholders.",
			},
		},
	}
}
