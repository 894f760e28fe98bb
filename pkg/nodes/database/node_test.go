package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credenflow/credenflow/pkg/collaborators"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/testutil"
)

func newHandler(t *testing.T) (protocol.Handler, *collaborators.MemoryRowStore) {
	t.Helper()

	rows := collaborators.NewMemoryRowStore()

	handler, err := NewFactory().Create(protocol.Dependencies{Rows: rows})
	require.NoError(t, err)

	return handler, rows
}

func TestExecute_InsertRendersContextValues(t *testing.T) {
	handler, rows := newHandler(t)

	input := protocol.Input{
		Node: testutil.NewNode("record", models.NodeTypeDatabase, testutil.WithData(map[string]any{
			"operation": "insert",
			"table":     "accreditations",
			"data": map[string]any{
				"provider_id": "{context.provider_id}",
				"status":      "granted",
			},
		})),
		ExecutionID: "exec-1",
		Context: models.NewExecutionContext("exec-1", "wf-1", map[string]any{
			"provider_id": "prov-42",
		}),
	}

	outcome, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeCompleted, outcome.Status)
	require.Len(t, rows.Rows["accreditations"], 1)
	assert.Equal(t, "prov-42", rows.Rows["accreditations"][0]["provider_id"])
	assert.Equal(t, "granted", rows.Rows["accreditations"][0]["status"])
}

func TestExecute_UpdateRequiresWhere(t *testing.T) {
	handler, _ := newHandler(t)

	input := protocol.Input{
		Node: testutil.NewNode("record", models.NodeTypeDatabase, testutil.WithData(map[string]any{
			"operation": "update",
			"table":     "accreditations",
			"data":      map[string]any{"status": "revoked"},
		})),
		ExecutionID: "exec-1",
		Context:     models.NewExecutionContext("exec-1", "wf-1", nil),
	}

	outcome, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailed, outcome.Status)
}

func TestExecute_UnknownOperation(t *testing.T) {
	handler, _ := newHandler(t)

	input := protocol.Input{
		Node: testutil.NewNode("record", models.NodeTypeDatabase, testutil.WithData(map[string]any{
			"operation": "upsert",
			"table":     "accreditations",
		})),
		ExecutionID: "exec-1",
		Context:     models.NewExecutionContext("exec-1", "wf-1", nil),
	}

	outcome, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailed, outcome.Status)
	assert.Contains(t, outcome.ErrorMessage, "upsert")
}
