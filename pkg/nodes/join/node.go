package join

import (
	"context"
	"time"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

type Node struct{}

// Execute runs only after the scheduler has satisfied the wait mode, so
// the handler just records the merge point.
func (n *Node) Execute(_ context.Context, input protocol.Input) (*models.Outcome, error) {
	return models.Completed(map[string]any{
		"joined":    true,
		"joined_at": time.Now().UTC().Format(time.RFC3339),
		"mode":      Mode(input.Node),
	}, nil), nil
}

// Mode reads the configured wait mode, defaulting to wait_all.
func Mode(node *models.Node) string {
	if mode, ok := node.Data["mode"].(string); ok && mode == WaitAny {
		return WaitAny
	}

	return WaitAll
}

// Timeout reads the configured wait timeout.
func Timeout(node *models.Node) time.Duration {
	if seconds, ok := node.Data["timeout_seconds"].(float64); ok && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return DefaultTimeoutSeconds * time.Second
}
