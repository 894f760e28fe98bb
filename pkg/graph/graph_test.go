package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credenflow/credenflow/pkg/expr"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/testutil"
)

func TestNew_ValidLinearGraph(t *testing.T) {
	definition := testutil.LinearDefinition("start", "review", "end")

	g, err := New(definition, expr.NewInterpreter())
	require.NoError(t, err)

	assert.Len(t, g.OutgoingEdges("start"), 1)
	assert.Len(t, g.IncomingEdges("end"), 1)
	assert.Empty(t, g.OutgoingEdges("end"))
}

func TestNew_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.WorkflowDefinition)
	}{
		{
			"missing start node",
			func(d *models.WorkflowDefinition) {
				d.Nodes[0].Type = models.NodeTypeEmail
			},
		},
		{
			"edge references unknown node",
			func(d *models.WorkflowDefinition) {
				d.Edges[0].Target = "ghost"
			},
		},
		{
			"non-end node without outgoing edge",
			func(d *models.WorkflowDefinition) {
				d.Edges = d.Edges[:1]
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			definition := testutil.LinearDefinition("start", "review", "end")
			tt.mutate(definition)

			_, err := New(definition, expr.NewInterpreter())
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestEligibleEdges_ConditionalBranching(t *testing.T) {
	definition := testutil.BranchingDefinition(
		"{context.cpf_valid} === true",
		"{context.cpf_valid} === false",
	)

	g, err := New(definition, expr.NewInterpreter())
	require.NoError(t, err)

	eligible, err := g.EligibleEdges("decide", map[string]any{"cpf_valid": true})
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "approve", eligible[0].Target)

	eligible, err = g.EligibleEdges("decide", map[string]any{"cpf_valid": false})
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "reject", eligible[0].Target)
}

func TestEligibleEdges_PriorityOrdersOverlappingConditions(t *testing.T) {
	definition := testutil.BranchingDefinition(
		"{context.score} >= 5",
		"{context.score} >= 0",
	)

	high := 10
	definition.Edges[1].Priority = nil
	definition.Edges[2].Priority = &high

	g, err := New(definition, expr.NewInterpreter())
	require.NoError(t, err)

	eligible, err := g.EligibleEdges("decide", map[string]any{"score": float64(7)})
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	// Higher priority first; nil priority sorts last.
	assert.Equal(t, "reject", eligible[0].Target)
	assert.Equal(t, "approve", eligible[1].Target)
}

func TestEligibleEdges_UnconditionalFanOut(t *testing.T) {
	definition := testutil.FanOutDefinition(3)

	g, err := New(definition, expr.NewInterpreter())
	require.NoError(t, err)

	eligible, err := g.EligibleEdges("start", map[string]any{})
	require.NoError(t, err)
	assert.Len(t, eligible, 3)
}

func TestEligibleEdges_EvaluationErrorIsSurfaced(t *testing.T) {
	definition := testutil.BranchingDefinition(
		"{context.missing} === true",
		"{context.missing} === false",
	)

	g, err := New(definition, expr.NewInterpreter())
	require.NoError(t, err)

	_, err = g.EligibleEdges("decide", map[string]any{})
	require.ErrorIs(t, err, ErrConditionNotEvaluable)
}
