package start

import (
	"context"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

type Node struct{}

// Execute merges any configured initial_context into the execution
// context. The input payload itself is seeded by the engine before the
// start node runs.
func (n *Node) Execute(_ context.Context, input protocol.Input) (*models.Outcome, error) {
	patch := map[string]any{}

	if initial, ok := input.Node.Data["initial_context"].(map[string]any); ok {
		for key, value := range initial {
			patch[key] = value
		}
	}

	return models.Completed(map[string]any{"started": true}, patch), nil
}
