// Package join provides the synchronization node where parallel
// branches converge. The scheduler enforces the wait mode and timeout;
// the handler itself runs once the wait is satisfied.
package join

import (
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

const (
	WaitAll = "wait_all"
	WaitAny = "wait_any"

	DefaultTimeoutSeconds = 3600
)

type Factory struct{}

func NewFactory() protocol.HandlerFactory {
	return &Factory{}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Handler, error) {
	return &Node{}, nil
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeJoin
}

func (f *Factory) Name() string {
	return "Join"
}

func (f *Factory) Description() string {
	return "Waits for incoming parallel branches to finish before execution continues downstream."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type":        "string",
				"enum":        []string{WaitAll, WaitAny},
				"description": "wait_all blocks until every incoming branch reaches a terminal state; wait_any proceeds on the first completion.",
			},
			"timeout_seconds": map[string]any{
				"type":        "number",
				"minimum":     1,
				"description": "Maximum time to wait for the remaining branches before the join fails.",
			},
		},
	}
}
