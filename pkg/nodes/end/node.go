package end

import (
	"context"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

type Node struct{}

func (n *Node) Execute(_ context.Context, input protocol.Input) (*models.Outcome, error) {
	output := map[string]any{"ended": true}

	if key, ok := input.Node.Data["result_key"].(string); ok && key != "" {
		if value, found := input.Context.Get(key); found {
			output["result"] = value
		}
	}

	return models.Completed(output, nil), nil
}
