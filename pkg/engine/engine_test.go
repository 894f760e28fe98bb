package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credenflow/credenflow/pkg/graph"
	"github.com/credenflow/credenflow/pkg/log"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/nodes/approval"
	"github.com/credenflow/credenflow/pkg/nodes/condition"
	"github.com/credenflow/credenflow/pkg/nodes/end"
	"github.com/credenflow/credenflow/pkg/nodes/join"
	"github.com/credenflow/credenflow/pkg/nodes/start"
	"github.com/credenflow/credenflow/pkg/persistence"
	"github.com/credenflow/credenflow/pkg/persistence/file"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/registry"
	"github.com/credenflow/credenflow/pkg/testutil"
)

// taskFactory is a configurable stub handler for the generic task node
// used by these tests. Node data controls behavior:
//
//	sleep_ms   - sleep before completing
//	fail       - always fail the step
//	fail_times - fail the first N runs of this node, then succeed
//	patch      - context patch returned on success
type taskFactory struct {
	mu       sync.Mutex
	runs     map[string]int
	failures map[string]int
}

func newTaskFactory() *taskFactory {
	return &taskFactory{
		runs:     make(map[string]int),
		failures: make(map[string]int),
	}
}

func (f *taskFactory) Create(_ protocol.Dependencies) (protocol.Handler, error) {
	return &taskHandler{factory: f}, nil
}

func (f *taskFactory) Type() models.NodeType { return testutil.NodeTypeTask }
func (f *taskFactory) Name() string          { return "Task" }
func (f *taskFactory) Description() string   { return "Configurable stub task" }
func (f *taskFactory) Schema() map[string]any {
	return nil
}

func (f *taskFactory) runCount(nodeID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.runs[nodeID]
}

type taskHandler struct {
	factory *taskFactory
}

func (h *taskHandler) Execute(_ context.Context, input protocol.Input) (*models.Outcome, error) {
	h.factory.mu.Lock()
	h.factory.runs[input.Node.ID]++
	run := h.factory.runs[input.Node.ID]
	h.factory.mu.Unlock()

	if ms, ok := numberField(input.Node.Data, "sleep_ms"); ok {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}

	if fail, _ := input.Node.Data["fail"].(bool); fail {
		return models.Failed("task configured to fail"), nil
	}

	if failTimes, ok := numberField(input.Node.Data, "fail_times"); ok && run <= failTimes {
		return models.Failed(fmt.Sprintf("transient failure %d of %d", run, failTimes)), nil
	}

	patch, _ := input.Node.Data["patch"].(map[string]any)

	return models.Completed(map[string]any{"ran": input.Node.ID}, patch), nil
}

func numberField(data map[string]any, key string) (int, bool) {
	switch v := data[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func newTestEngine(t *testing.T) (*Engine, persistence.Persistence, *taskFactory) {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	logger := log.Setup("error")

	tasks := newTaskFactory()

	reg := registry.NewRegistry(logger)
	reg.Register(start.NewFactory())
	reg.Register(end.NewFactory())
	reg.Register(condition.NewFactory())
	reg.Register(join.NewFactory())
	reg.Register(approval.NewFactory())
	reg.Register(tasks)

	return New(logger, store, reg), store, tasks
}

func saveDefinition(t *testing.T, store persistence.Persistence, definition *models.WorkflowDefinition) {
	t.Helper()
	require.NoError(t, store.SaveDefinition(context.Background(), definition))
}

func stepsByNode(t *testing.T, store persistence.Persistence, executionID string) map[string]*models.StepExecution {
	t.Helper()

	steps, err := store.StepsByExecution(context.Background(), executionID)
	require.NoError(t, err)

	byNode := make(map[string]*models.StepExecution, len(steps))
	for _, step := range steps {
		byNode[step.NodeID] = step
	}

	return byNode
}

func TestStart_LinearWorkflowCompletes(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	definition := testutil.LinearDefinition("start", "screen", "verify", "end")
	saveDefinition(t, store, definition)

	execution, err := engine.Start(context.Background(), definition.ID, map[string]any{"provider_id": "prov-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	require.NotNil(t, execution.CompletedAt)
	assert.Equal(t, "prov-1", execution.Context["provider_id"])

	for nodeID, step := range stepsByNode(t, store, execution.ID) {
		assert.Equal(t, models.StepStatusCompleted, step.Status, "node %s", nodeID)
	}
}

func TestStart_ExclusiveBranching(t *testing.T) {
	engine, store, tasks := newTestEngine(t)

	definition := testutil.BranchingDefinition(
		`{context.decide} === true`,
		`{context.decide} !== true`,
	)
	definition.Nodes[1].Data = map[string]any{"expression": `{context.approved} === true`}
	saveDefinition(t, store, definition)

	execution, err := engine.Start(context.Background(), definition.ID, map[string]any{"approved": true})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	steps := stepsByNode(t, store, execution.ID)
	assert.Equal(t, models.StepStatusCompleted, steps["approve"].Status)
	assert.Equal(t, models.StepStatusSkipped, steps["reject"].Status)
	assert.Equal(t, models.StepStatusCompleted, steps["end"].Status)

	assert.Equal(t, 1, tasks.runCount("approve"))
	assert.Equal(t, 0, tasks.runCount("reject"))
}

func TestStart_ParallelFanOutAndJoin(t *testing.T) {
	engine, store, tasks := newTestEngine(t)

	definition := testutil.FanOutDefinition(3)

	for _, node := range definition.Nodes {
		if node.Type == testutil.NodeTypeTask {
			node.Data = map[string]any{"sleep_ms": 200}
		}
	}

	saveDefinition(t, store, definition)

	began := time.Now()

	execution, err := engine.Start(context.Background(), definition.ID, nil)
	require.NoError(t, err)

	elapsed := time.Since(began)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	// Three 200ms branches running concurrently finish far sooner than
	// they would sequentially.
	assert.Less(t, elapsed, 500*time.Millisecond)

	steps := stepsByNode(t, store, execution.ID)
	assert.Equal(t, models.StepStatusCompleted, steps["join"].Status)

	for i := 1; i <= 3; i++ {
		nodeID := fmt.Sprintf("branch%d", i)
		assert.Equal(t, models.StepStatusCompleted, steps[nodeID].Status)
		assert.Equal(t, 1, tasks.runCount(nodeID))
		assert.True(t, steps["join"].StartedAt.After(*steps[nodeID].CompletedAt) ||
			steps["join"].StartedAt.Equal(*steps[nodeID].CompletedAt),
			"join started before branch %s finished", nodeID)
	}
}

func TestStart_PauseAndResume(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	definition := testutil.ApprovalDefinition()
	saveDefinition(t, store, definition)

	execution, err := engine.Start(context.Background(), definition.ID, map[string]any{"provider_id": "prov-7"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusPaused, execution.Status)
	assert.Nil(t, execution.CompletedAt)

	steps := stepsByNode(t, store, execution.ID)
	require.Equal(t, models.StepStatusPaused, steps["approve"].Status)

	resumed, err := engine.Resume(context.Background(), ResumeRequest{
		StepExecutionID: steps["approve"].ID,
		Decision:        models.DecisionApproved,
		ResumeData:      map[string]any{"reviewer": "dr.chen"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
	assert.Equal(t, "dr.chen", resumed.Context["reviewer"])

	steps = stepsByNode(t, store, execution.ID)
	assert.Equal(t, models.StepStatusCompleted, steps["approve"].Status)
	assert.Equal(t, "approved", steps["approve"].Output["decision"])
	assert.Equal(t, models.StepStatusCompleted, steps["notify"].Status)

	// The token was consumed; a second resume must be rejected.
	_, err = engine.Resume(context.Background(), ResumeRequest{
		StepExecutionID: steps["approve"].ID,
		Decision:        models.DecisionApproved,
	})

	var resumeErr *ResumeValidationError
	require.ErrorAs(t, err, &resumeErr)
	assert.ErrorIs(t, err, ErrStepNotPaused)
}

func TestResume_RejectionFailsExecution(t *testing.T) {
	engine, store, tasks := newTestEngine(t)

	definition := testutil.ApprovalDefinition()
	saveDefinition(t, store, definition)

	execution, err := engine.Start(context.Background(), definition.ID, nil)
	require.NoError(t, err)

	steps := stepsByNode(t, store, execution.ID)

	resumed, err := engine.Resume(context.Background(), ResumeRequest{
		StepExecutionID: steps["approve"].ID,
		Decision:        models.DecisionRejected,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, resumed.Status)
	assert.NotEmpty(t, resumed.ErrorMessage)

	steps = stepsByNode(t, store, execution.ID)
	assert.Equal(t, models.StepStatusFailed, steps["approve"].Status)
	assert.Equal(t, models.StepStatusSkipped, steps["notify"].Status)
	assert.Equal(t, 0, tasks.runCount("notify"))
}

func TestResume_InvalidDecision(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Resume(context.Background(), ResumeRequest{
		StepExecutionID: "whatever",
		Decision:        models.Decision("maybe"),
	})

	assert.ErrorIs(t, err, ErrInvalidDecision)
}

func TestStart_FailureContainment(t *testing.T) {
	engine, store, tasks := newTestEngine(t)

	// start fans out to a failing branch and a slow healthy one.
	nodes := []*models.Node{
		testutil.NewNode("start", models.NodeTypeStart),
		testutil.NewNode("broken", testutil.NodeTypeTask, testutil.WithData(map[string]any{"fail": true})),
		testutil.NewNode("healthy", testutil.NodeTypeTask, testutil.WithData(map[string]any{"sleep_ms": 100})),
		testutil.NewNode("after_broken", testutil.NodeTypeTask),
		testutil.NewNode("end", models.NodeTypeEnd),
	}
	edges := []*models.Edge{
		testutil.NewEdge("start", "broken"),
		testutil.NewEdge("start", "healthy"),
		testutil.NewEdge("broken", "after_broken"),
		testutil.NewEdge("after_broken", "end"),
		testutil.NewEdge("healthy", "end"),
	}
	definition := testutil.NewDefinition("containment", nodes, edges)
	saveDefinition(t, store, definition)

	execution, err := engine.Start(context.Background(), definition.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "broken")

	steps := stepsByNode(t, store, execution.ID)
	assert.Equal(t, models.StepStatusFailed, steps["broken"].Status)
	assert.Equal(t, models.StepStatusCompleted, steps["healthy"].Status, "sibling branch must run to completion")
	assert.Equal(t, models.StepStatusSkipped, steps["after_broken"].Status)
	assert.Equal(t, 1, tasks.runCount("healthy"))
	assert.Equal(t, 0, tasks.runCount("after_broken"))
}

func TestRetry_IndependentExecution(t *testing.T) {
	engine, store, tasks := newTestEngine(t)

	definition := testutil.LinearDefinition("start", "ingest", "verify", "end")

	verify, ok := definition.NodeByID("verify")
	require.True(t, ok)
	verify.Data = map[string]any{"fail_times": 1}

	saveDefinition(t, store, definition)

	first, err := engine.Start(context.Background(), definition.ID, map[string]any{"provider_id": "prov-3"})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusFailed, first.Status)

	second, err := engine.Retry(context.Background(), first.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, second.Status)
	assert.NotEqual(t, first.ID, second.ID)
	require.NotNil(t, second.PreviousExecutionID)
	assert.Equal(t, first.ID, *second.PreviousExecutionID)

	// The failed execution is untouched by the retry.
	reloaded, err := store.ExecutionByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, reloaded.Status)

	// Completed steps carried forward instead of re-running.
	assert.Equal(t, 1, tasks.runCount("ingest"))
	assert.Equal(t, 2, tasks.runCount("verify"))

	steps := stepsByNode(t, store, second.ID)
	assert.Equal(t, models.StepStatusCompleted, steps["ingest"].Status)
	assert.Equal(t, models.StepStatusCompleted, steps["verify"].Status)
	assert.Equal(t, 1, steps["verify"].RetryCount)
}

func TestRetry_RequiresFailedExecution(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	definition := testutil.LinearDefinition("start", "task", "end")
	saveDefinition(t, store, definition)

	execution, err := engine.Start(context.Background(), definition.ID, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	_, err = engine.Retry(context.Background(), execution.ID)
	assert.ErrorIs(t, err, ErrExecutionNotFailed)
}

func TestStart_DiamondDispatchesOnce(t *testing.T) {
	engine, store, tasks := newTestEngine(t)

	// start fans out to a and b, both feed c. c is a plain task, so the
	// first completed path dispatches it and the second is a no-op.
	nodes := []*models.Node{
		testutil.NewNode("start", models.NodeTypeStart),
		testutil.NewNode("a", testutil.NodeTypeTask),
		testutil.NewNode("b", testutil.NodeTypeTask, testutil.WithData(map[string]any{"sleep_ms": 50})),
		testutil.NewNode("c", testutil.NodeTypeTask),
		testutil.NewNode("end", models.NodeTypeEnd),
	}
	edges := []*models.Edge{
		testutil.NewEdge("start", "a"),
		testutil.NewEdge("start", "b"),
		testutil.NewEdge("a", "c"),
		testutil.NewEdge("b", "c"),
		testutil.NewEdge("c", "end"),
	}
	definition := testutil.NewDefinition("diamond", nodes, edges)
	saveDefinition(t, store, definition)

	execution, err := engine.Start(context.Background(), definition.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, 1, tasks.runCount("c"))
}

func TestStart_JoinTimeout(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	definition := testutil.FanOutDefinition(2)

	slow, ok := definition.NodeByID("branch2")
	require.True(t, ok)
	slow.Data = map[string]any{"sleep_ms": 1500}

	joinNode, ok := definition.NodeByID("join")
	require.True(t, ok)
	joinNode.Data = map[string]any{"mode": "wait_all", "timeout_seconds": float64(1)}

	saveDefinition(t, store, definition)

	execution, err := engine.Start(context.Background(), definition.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "timed out")

	steps := stepsByNode(t, store, execution.ID)
	assert.Equal(t, models.StepStatusFailed, steps["join"].Status)
	assert.Equal(t, models.StepStatusSkipped, steps["end"].Status)
	// The slow branch still ran to completion.
	assert.Equal(t, models.StepStatusCompleted, steps["branch2"].Status)
}

func TestStart_InvalidGraphRejectedUpfront(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	definition := testutil.LinearDefinition("start", "task", "end")
	definition.Edges[0].Target = "ghost"
	saveDefinition(t, store, definition)

	_, err := engine.Start(context.Background(), definition.ID, nil)

	var validationErr *graph.ValidationError
	require.ErrorAs(t, err, &validationErr)

	// No execution record was created for the workflow.
	executions, err := engine.store.ExecutionsByWorkflow(context.Background(), definition.ID)
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestStart_UnevaluableEdgeConditionFails(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	definition := testutil.BranchingDefinition(
		`{context.missing_key} === true`,
		`{context.missing_key} !== true`,
	)
	definition.Nodes[1].Type = testutil.NodeTypeTask
	saveDefinition(t, store, definition)

	execution, err := engine.Start(context.Background(), definition.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "not evaluable")
}

func TestStart_WaitingJoinReportsBlocked(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	nodes := []*models.Node{
		testutil.NewNode("start", models.NodeTypeStart),
		testutil.NewNode("review", models.NodeTypeApproval, testutil.WithData(map[string]any{
			"approver_group": "credentialing-reviewers",
		})),
		testutil.NewNode("task", testutil.NodeTypeTask),
		testutil.NewNode("join", models.NodeTypeJoin, testutil.WithData(map[string]any{
			"mode": "wait_all",
		})),
		testutil.NewNode("end", models.NodeTypeEnd),
	}
	edges := []*models.Edge{
		testutil.NewEdge("start", "review"),
		testutil.NewEdge("start", "task"),
		testutil.NewEdge("review", "join"),
		testutil.NewEdge("task", "join"),
		testutil.NewEdge("join", "end"),
	}
	definition := testutil.NewDefinition("blocked-join", nodes, edges)
	saveDefinition(t, store, definition)

	execution, err := engine.Start(context.Background(), definition.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusPaused, execution.Status)

	// The join persisted as blocked on the paused approval branch.
	steps := stepsByNode(t, store, execution.ID)
	assert.Equal(t, models.StepStatusBlocked, steps["join"].Status)
	assert.Equal(t, []string{"review"}, steps["join"].BlockedBy)

	resumed, err := engine.Resume(context.Background(), ResumeRequest{
		StepExecutionID: steps["review"].ID,
		Decision:        models.DecisionApproved,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)

	steps = stepsByNode(t, store, execution.ID)
	assert.Equal(t, models.StepStatusCompleted, steps["join"].Status)
	assert.Empty(t, steps["join"].BlockedBy)
	assert.Equal(t, models.StepStatusCompleted, steps["end"].Status)
}

func TestStart_AllBranchesSkippedFailsExecution(t *testing.T) {
	engine, store, tasks := newTestEngine(t)

	// Both conditions evaluate cleanly to false against a string flag, so
	// every path to the end node goes dead without any step failing.
	definition := testutil.BranchingDefinition(
		`{context.flag} === true`,
		`{context.flag} === false`,
	)
	saveDefinition(t, store, definition)

	execution, err := engine.Start(context.Background(), definition.ID, map[string]any{"flag": "maybe"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "no end node reached")

	steps := stepsByNode(t, store, execution.ID)
	assert.Equal(t, models.StepStatusSkipped, steps["approve"].Status)
	assert.Equal(t, models.StepStatusSkipped, steps["reject"].Status)
	assert.Equal(t, models.StepStatusSkipped, steps["end"].Status)

	assert.Equal(t, 0, tasks.runCount("approve"))
	assert.Equal(t, 0, tasks.runCount("reject"))
}

func TestState_ReadModel(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	definition := testutil.ApprovalDefinition()
	saveDefinition(t, store, definition)

	execution, err := engine.Start(context.Background(), definition.ID, nil)
	require.NoError(t, err)

	state, err := engine.State(context.Background(), execution.ID)
	require.NoError(t, err)

	assert.Equal(t, execution.ID, state.ExecutionID)
	assert.Equal(t, models.ExecutionStatusPaused, state.Status)
	assert.Equal(t, 1, state.Stats.Running)
	assert.Equal(t, 2, state.Stats.Completed)
	assert.Equal(t, 2, state.Stats.Pending)
}
