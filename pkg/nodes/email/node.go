package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/credenflow/credenflow/pkg/collaborators"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/template"
)

type Node struct {
	mailer collaborators.Mailer
	logger *slog.Logger
}

func (n *Node) Execute(ctx context.Context, input protocol.Input) (*models.Outcome, error) {
	snapshot := input.Context.Snapshot()

	recipients := splitRecipients(template.RenderString(stringField(input.Node, "to"), snapshot))
	if len(recipients) == 0 {
		return models.Failed("recipient resolved to empty address"), nil
	}

	message := collaborators.Message{
		To:      recipients,
		Subject: template.RenderString(stringField(input.Node, "subject"), snapshot),
		Body:    template.RenderString(stringField(input.Node, "body"), snapshot),
	}

	if err := n.mailer.Send(ctx, message); err != nil {
		return models.Failed(fmt.Sprintf("send email: %v", err)), nil
	}

	if n.logger != nil {
		n.logger.Info("Email sent", "node_id", input.Node.ID, "to", recipients)
	}

	return models.Completed(map[string]any{"sent": true, "to": recipients}, nil), nil
}

// splitRecipients turns a rendered "to" field into its address list. The
// field accepts a comma-separated string so one node can notify several
// reviewers.
func splitRecipients(rendered string) []string {
	var recipients []string

	for _, part := range strings.Split(rendered, ",") {
		if address := strings.TrimSpace(part); address != "" {
			recipients = append(recipients, address)
		}
	}

	return recipients
}

func stringField(node *models.Node, key string) string {
	value, _ := node.Data[key].(string)

	return value
}
