package condition

import (
	"context"
	"errors"
	"fmt"

	"github.com/credenflow/credenflow/pkg/expr"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

type Node struct {
	evaluator expr.Evaluator
}

// Execute evaluates the configured expression. An evaluation error
// fails the step rather than defaulting to false: a missing context
// reference points at a modeling mistake, not a negative answer.
func (n *Node) Execute(_ context.Context, input protocol.Input) (*models.Outcome, error) {
	expression, ok := input.Node.Data["expression"].(string)
	if !ok || expression == "" {
		return models.Failed("missing required field 'expression'"), nil
	}

	result, err := n.evaluator.Evaluate(expression, input.Context.Snapshot())
	if err != nil {
		if errors.Is(err, expr.ErrUnresolvedReference) {
			return models.Failed(fmt.Sprintf("condition references unknown context key: %v", err)), nil
		}

		return models.Failed(fmt.Sprintf("condition evaluation failed: %v", err)), nil
	}

	resultKey := input.Node.ID
	if key, ok := input.Node.Data["result_key"].(string); ok && key != "" {
		resultKey = key
	}

	output := map[string]any{"result": result, "expression": expression}
	patch := map[string]any{resultKey: result}

	return models.Completed(output, patch), nil
}
