package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/persistence"
	"github.com/credenflow/credenflow/pkg/testutil"
)

func newStore(t *testing.T) *Persistence {
	t.Helper()

	store, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	return store
}

func TestDefinitionRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	definition := testutil.LinearDefinition("start", "review", "end")
	require.NoError(t, store.SaveDefinition(ctx, definition))

	loaded, err := store.DefinitionByID(ctx, definition.ID)
	require.NoError(t, err)
	assert.Equal(t, definition.ID, loaded.ID)
	assert.Equal(t, 1, loaded.Version)
	assert.Len(t, loaded.Nodes, 3)
	assert.Len(t, loaded.Edges, 2)
}

func TestDefinitionVersionsAreImmutable(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	definition := testutil.LinearDefinition("start", "review", "end")
	require.NoError(t, store.SaveDefinition(ctx, definition))

	v2 := *definition
	v2.Version = 2
	v2.Name = "renamed"
	require.NoError(t, store.SaveDefinition(ctx, &v2))

	// Latest wins for unversioned lookups.
	latest, err := store.DefinitionByID(ctx, definition.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, "renamed", latest.Name)

	// The pinned version still reads back unchanged.
	v1, err := store.DefinitionByVersion(ctx, definition.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "linear", v1.Name)
}

func TestDefinitionNotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.DefinitionByID(context.Background(), "missing")
	assert.True(t, persistence.IsDefinitionNotFound(err))

	_, err = store.DefinitionByVersion(context.Background(), "missing", 3)
	assert.True(t, persistence.IsDefinitionNotFound(err))
}

func TestExecutionRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	execution := testutil.NewExecution("wf-1")
	execution.Context = map[string]any{"cpf_valid": true}
	require.NoError(t, store.SaveExecution(ctx, execution))

	loaded, err := store.ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, loaded.Status)
	assert.Equal(t, true, loaded.Context["cpf_valid"])

	// Status update is an upsert.
	now := time.Now().UTC()
	loaded.Status = models.ExecutionStatusCompleted
	loaded.CompletedAt = &now
	require.NoError(t, store.SaveExecution(ctx, loaded))

	reloaded, err := store.ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)
}

func TestExecutionsByWorkflow(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := testutil.NewExecution("wf-1")
	second := testutil.NewExecution("wf-1")
	second.StartedAt = first.StartedAt.Add(time.Second)
	other := testutil.NewExecution("wf-2")

	for _, execution := range []*models.WorkflowExecution{second, first, other} {
		require.NoError(t, store.SaveExecution(ctx, execution))
	}

	executions, err := store.ExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, first.ID, executions[0].ID)
	assert.Equal(t, second.ID, executions[1].ID)
}

func TestStepRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	step := &models.StepExecution{
		ID:          "step-1",
		ExecutionID: "exec-1",
		NodeID:      "review",
		NodeType:    testutil.NodeTypeTask,
		Status:      models.StepStatusPending,
	}
	require.NoError(t, store.SaveStep(ctx, step))

	loaded, err := store.StepByID(ctx, "step-1")
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusPending, loaded.Status)

	steps, err := store.StepsByExecution(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, steps, 1)

	_, err = store.StepByID(ctx, "missing")
	assert.True(t, persistence.IsStepNotFound(err))
}

func TestStepsByExecution_EmptyForUnknownExecution(t *testing.T) {
	store := newStore(t)

	steps, err := store.StepsByExecution(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, steps)
}
