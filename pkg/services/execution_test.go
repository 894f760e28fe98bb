package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credenflow/credenflow/pkg/engine"
	"github.com/credenflow/credenflow/pkg/eventbus"
	"github.com/credenflow/credenflow/pkg/events"
	"github.com/credenflow/credenflow/pkg/log"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/nodes/approval"
	"github.com/credenflow/credenflow/pkg/nodes/end"
	"github.com/credenflow/credenflow/pkg/nodes/start"
	"github.com/credenflow/credenflow/pkg/persistence"
	"github.com/credenflow/credenflow/pkg/persistence/file"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/registry"
	"github.com/credenflow/credenflow/pkg/testutil"
)

type recordingPublisher struct {
	published []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func newExecutionFixture(t *testing.T) (*Execution, persistence.Persistence) {
	t.Helper()

	logger := log.Setup("error")

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	reg := registry.NewRegistry(logger)
	reg.Register(start.NewFactory())
	reg.Register(approval.NewFactory())
	reg.Register(end.NewFactory())

	eng := engine.New(logger, store, reg, engine.WithDependencies(protocol.Dependencies{Logger: logger}))

	return NewExecution(store, eng), store
}

func approvalDefinition() *models.WorkflowDefinition {
	nodes := []*models.Node{
		testutil.NewNode("start", models.NodeTypeStart),
		testutil.NewNode("review", models.NodeTypeApproval, testutil.WithData(map[string]any{
			"approver_group": "credentialing",
		})),
		testutil.NewNode("end", models.NodeTypeEnd),
	}
	edges := []*models.Edge{
		testutil.NewEdge("start", "review"),
		testutil.NewEdge("review", "end"),
	}

	return testutil.NewDefinition("accreditation review", nodes, edges)
}

func TestExecute_SyncRunsInProcess(t *testing.T) {
	service, store := newExecutionFixture(t)

	definition := approvalDefinition()
	require.NoError(t, store.SaveDefinition(context.Background(), definition))

	execution, err := service.Execute(context.Background(), definition.ID, map[string]any{"provider_id": "prv-9"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusPaused, execution.Status)
}

func TestExecute_AsyncPublishesCommand(t *testing.T) {
	service, store := newExecutionFixture(t)
	publisher := &recordingPublisher{}
	service = service.WithDispatcher(publisher)

	definition := approvalDefinition()
	require.NoError(t, store.SaveDefinition(context.Background(), definition))

	execution, err := service.Execute(context.Background(), definition.ID, nil)
	require.NoError(t, err)

	// Dispatch mode hands the pending execution to a worker untouched.
	assert.Equal(t, models.ExecutionStatusPending, execution.Status)
	require.Len(t, publisher.published, 1)

	requested, ok := publisher.published[0].(events.ExecutionRequested)
	require.True(t, ok)
	assert.Equal(t, execution.ID, requested.ExecutionID)
}

func TestContinue_AsyncValidatesTokenBeforeDispatch(t *testing.T) {
	service, store := newExecutionFixture(t)

	definition := approvalDefinition()
	require.NoError(t, store.SaveDefinition(context.Background(), definition))

	execution, err := service.Execute(context.Background(), definition.ID, nil)
	require.NoError(t, err)

	steps, err := service.Steps(context.Background(), execution.ID)
	require.NoError(t, err)

	var token string

	for _, step := range steps {
		if step.Status == models.StepStatusPaused {
			token = step.ID
		}
	}

	require.NotEmpty(t, token)

	publisher := &recordingPublisher{}
	service = service.WithDispatcher(publisher)

	// A bogus token never reaches the bus.
	_, err = service.Continue(context.Background(), engine.ResumeRequest{
		StepExecutionID: "no-such-step",
		Decision:        models.DecisionApproved,
	})
	require.Error(t, err)

	var resumeErr *engine.ResumeValidationError

	require.ErrorAs(t, err, &resumeErr)
	assert.Empty(t, publisher.published)

	// Nor does an unknown decision.
	_, err = service.Continue(context.Background(), engine.ResumeRequest{
		StepExecutionID: token,
		Decision:        models.Decision("maybe"),
	})
	require.ErrorAs(t, err, &resumeErr)
	assert.True(t, errors.Is(err, engine.ErrInvalidDecision))
	assert.Empty(t, publisher.published)

	// A valid token and decision become a resume command.
	_, err = service.Continue(context.Background(), engine.ResumeRequest{
		StepExecutionID: token,
		Decision:        models.DecisionApproved,
		ResumeData:      map[string]any{"reviewer": "dr-ito"},
	})
	require.NoError(t, err)
	require.Len(t, publisher.published, 1)

	resume, ok := publisher.published[0].(events.ResumeRequested)
	require.True(t, ok)
	assert.Equal(t, token, resume.StepExecutionID)
	assert.Equal(t, models.DecisionApproved, resume.Decision)
}
