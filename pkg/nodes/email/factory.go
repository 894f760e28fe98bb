// Package email provides the notification node that renders and sends
// an email through the configured mailer.
package email

import (
	"errors"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

type Factory struct{}

func NewFactory() protocol.HandlerFactory {
	return &Factory{}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Handler, error) {
	if deps.Mailer == nil {
		return nil, errors.New("email node requires a mailer")
	}

	return &Node{mailer: deps.Mailer, logger: deps.Logger}, nil
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeEmail
}

func (f *Factory) Name() string {
	return "Email"
}

func (f *Factory) Description() string {
	return "Sends an email with recipient, subject and body rendered from the execution context."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient address. Supports {context.key} placeholders.",
				"examples":    []string{"{context.provider_email}", "review-team@example.com"},
			},
			"subject": map[string]any{
				"type": "string",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Message body. Supports {context.key} placeholders.",
			},
		},
		"required": []string{"to", "subject", "body"},
	}
}
