package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credenflow/credenflow/pkg/eventbus"
	"github.com/credenflow/credenflow/pkg/events"
	"github.com/credenflow/credenflow/pkg/log"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/persistence/file"
	"github.com/credenflow/credenflow/pkg/testutil"
)

type capturingPublisher struct {
	published []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func TestSweep_RequeuesStaleRunningExecution(t *testing.T) {
	ctx := context.Background()
	logger := log.Setup("error")

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	definition := testutil.LinearDefinition("start", "verify", "end")
	require.NoError(t, store.SaveDefinition(ctx, definition))

	execution := testutil.NewExecution(definition.ID)
	execution.Status = models.ExecutionStatusRunning
	execution.StartedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.SaveExecution(ctx, execution))

	startedAt := execution.StartedAt

	step := &models.StepExecution{
		ID:          "step-1",
		ExecutionID: execution.ID,
		NodeID:      "verify",
		NodeType:    testutil.NodeTypeTask,
		Status:      models.StepStatusRunning,
		StartedAt:   &startedAt,
	}
	require.NoError(t, store.SaveStep(ctx, step))

	publisher := &capturingPublisher{}
	sweeper := NewSweeper(logger, store, publisher, 10*time.Minute)

	require.NoError(t, sweeper.Sweep(ctx))

	require.Len(t, publisher.published, 1)

	requested, ok := publisher.published[0].(events.ExecutionRequested)
	require.True(t, ok)
	assert.Equal(t, execution.ID, requested.ExecutionID)

	// The stuck step is back to pending so a replay dispatches it again.
	reloaded, err := store.StepByID(ctx, step.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusPending, reloaded.Status)
	assert.Nil(t, reloaded.StartedAt)
}

func TestSweep_LeavesFreshExecutionsAlone(t *testing.T) {
	ctx := context.Background()
	logger := log.Setup("error")

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	definition := testutil.LinearDefinition("start", "verify", "end")
	require.NoError(t, store.SaveDefinition(ctx, definition))

	execution := testutil.NewExecution(definition.ID)
	execution.Status = models.ExecutionStatusRunning
	execution.StartedAt = time.Now()
	require.NoError(t, store.SaveExecution(ctx, execution))

	publisher := &capturingPublisher{}
	sweeper := NewSweeper(logger, store, publisher, 10*time.Minute)

	require.NoError(t, sweeper.Sweep(ctx))
	assert.Empty(t, publisher.published)
}

func TestSweep_IgnoresTerminalExecutions(t *testing.T) {
	ctx := context.Background()
	logger := log.Setup("error")

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	definition := testutil.LinearDefinition("start", "verify", "end")
	require.NoError(t, store.SaveDefinition(ctx, definition))

	execution := testutil.NewExecution(definition.ID)
	execution.Status = models.ExecutionStatusCompleted
	execution.StartedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.SaveExecution(ctx, execution))

	publisher := &capturingPublisher{}
	sweeper := NewSweeper(logger, store, publisher, 10*time.Minute)

	require.NoError(t, sweeper.Sweep(ctx))
	assert.Empty(t, publisher.published)
}
