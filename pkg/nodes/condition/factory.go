// Package condition provides the branching node that evaluates a
// context expression and records its boolean result.
package condition

import (
	"github.com/credenflow/credenflow/pkg/expr"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

type Factory struct{}

func NewFactory() protocol.HandlerFactory {
	return &Factory{}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Handler, error) {
	return &Node{evaluator: expr.NewInterpreter()}, nil
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeCondition
}

func (f *Factory) Name() string {
	return "Condition"
}

func (f *Factory) Description() string {
	return "Evaluates a boolean expression against the execution context so outgoing edges can branch on the result."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Boolean expression over context references.",
				"examples": []string{
					`{context.approved} === true`,
					`{context.score} >= 80`,
					`{context.status} == "active" && {context.retries} < 3`,
				},
			},
			"result_key": map[string]any{
				"type":        "string",
				"description": "Context key the boolean result is written to. Defaults to the node ID.",
			},
		},
		"required": []string{"expression"},
	}
}
