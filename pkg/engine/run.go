package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/credenflow/credenflow/pkg/events"
	"github.com/credenflow/credenflow/pkg/graph"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/nodes/join"
	"github.com/credenflow/credenflow/pkg/otelhelper"
	"github.com/credenflow/credenflow/pkg/protocol"
)

// run holds the mutable state of one execution drive. All state
// transitions happen on the loop goroutine; handler goroutines only
// send results, so no lock is needed.
type run struct {
	engine    *Engine
	graph     *graph.Graph
	execution *models.WorkflowExecution
	context   *models.ExecutionContext

	steps     map[string]*models.StepExecution
	deadEdges map[string]bool
	joinWait  map[string]time.Time
	results   chan stepResult
	inFlight  int
	stepsRun  int
	firstErr  error
}

type stepResult struct {
	node    *models.Node
	outcome *models.Outcome
	err     error
}

func newRun(e *Engine, g *graph.Graph, execution *models.WorkflowExecution, steps map[string]*models.StepExecution) *run {
	return &run{
		engine:    e,
		graph:     g,
		execution: execution,
		context:   models.NewExecutionContext(execution.ID, execution.WorkflowID, execution.Context),
		steps:     steps,
		deadEdges: make(map[string]bool),
		joinWait:  make(map[string]time.Time),
		results:   make(chan stepResult, len(steps)+1),
	}
}

// loop drains handler results until no step is in flight. Waiting joins
// are raced against their deadlines.
func (r *run) loop(ctx context.Context) {
	for r.inFlight > 0 {
		deadline, waiting := r.nearestJoinDeadline()
		if !waiting {
			r.handle(ctx, <-r.results)

			continue
		}

		timer := time.NewTimer(time.Until(deadline))

		select {
		case res := <-r.results:
			r.handle(ctx, res)
		case <-timer.C:
			r.expireJoins(ctx)
		}

		timer.Stop()
	}
}

func (r *run) handle(ctx context.Context, res stepResult) {
	r.inFlight--

	step := r.steps[res.node.ID]
	now := time.Now().UTC()

	if res.err != nil {
		r.recordFailure(ctx, res.node, step, res.err.Error(), &now)
		r.failure(&NodeExecutionError{
			ExecutionID: r.execution.ID,
			NodeID:      res.node.ID,
			NodeType:    string(res.node.Type),
			Err:         res.err,
		})
		r.propagateAfterFailure(ctx, res.node)

		return
	}

	switch res.outcome.Status {
	case models.OutcomeCompleted:
		step.Status = models.StepStatusCompleted
		step.Output = res.outcome.Output
		step.Progress = res.outcome.Progress
		step.CompletedAt = &now
		step.ErrorMessage = ""
		r.stepsRun++

		r.context.Merge(res.outcome.ContextPatch)
		r.saveStep(ctx, step)
		r.publishStepCompleted(ctx, step, now.Sub(startedOrNow(step)).Milliseconds())
		r.checkpoint(ctx)
		r.scheduleSuccessors(ctx, res.node)

	case models.OutcomePaused:
		step.Status = models.StepStatusPaused
		step.Output = res.outcome.Output
		r.saveStep(ctx, step)
		r.checkpoint(ctx)

		r.engine.publish(ctx, r.execution.ID, events.StepPaused{
			BaseEvent:   events.NewBaseEvent(events.StepPausedEvent, r.execution.WorkflowID),
			ExecutionID: r.execution.ID,
			StepID:      step.ID,
			NodeID:      step.NodeID,
			ResumeToken: res.outcome.ResumeToken,
		})
		r.engine.publish(ctx, r.execution.ID, events.ExecutionPaused{
			BaseEvent:       events.NewBaseEvent(events.ExecutionPausedEvent, r.execution.WorkflowID),
			ExecutionID:     r.execution.ID,
			PausedAtNode:    step.NodeID,
			StepExecutionID: step.ID,
		})

	case models.OutcomeFailed:
		r.recordFailure(ctx, res.node, step, res.outcome.ErrorMessage, &now)
		r.failure(&NodeExecutionError{
			ExecutionID: r.execution.ID,
			NodeID:      res.node.ID,
			NodeType:    string(res.node.Type),
			Err:         errMessage(res.outcome.ErrorMessage),
		})
		r.propagateAfterFailure(ctx, res.node)
	}
}

// dispatch moves a node's step to running and executes its handler on
// its own goroutine.
func (r *run) dispatch(ctx context.Context, node *models.Node) {
	step := r.steps[node.ID]
	if !step.Status.Waiting() {
		return
	}

	now := time.Now().UTC()
	step.Status = models.StepStatusRunning
	step.StartedAt = &now
	step.BlockedBy = nil
	delete(r.joinWait, node.ID)

	r.saveStep(ctx, step)

	r.engine.publish(ctx, r.execution.ID, events.StepStarted{
		BaseEvent:   events.NewBaseEvent(events.StepStartedEvent, r.execution.WorkflowID),
		ExecutionID: r.execution.ID,
		StepID:      step.ID,
		NodeID:      node.ID,
		NodeType:    node.Type,
	})

	handler, err := r.engine.registry.Create(node.Type, r.engine.deps)
	if err != nil {
		r.inFlight++
		r.results <- stepResult{node: node, err: err}

		return
	}

	input := protocol.Input{
		Node:            node,
		StepExecutionID: step.ID,
		ExecutionID:     r.execution.ID,
		Context:         r.context,
	}

	r.inFlight++

	go func() {
		stepCtx, span := r.engine.tracer.Start(ctx, "engine.step",
			trace.WithAttributes(
				attribute.String(otelhelper.NodeIDKey, node.ID),
				attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
			))
		defer span.End()

		outcome, err := handler.Execute(stepCtx, input)
		if err != nil {
			otelhelper.StepError(span, node.ID, string(node.Type), err)
		}

		r.results <- stepResult{node: node, outcome: outcome, err: err}
	}()
}

// scheduleSuccessors runs after a node completes: eligible edges carry
// execution forward, ineligible ones go dead and may skip their targets.
func (r *run) scheduleSuccessors(ctx context.Context, node *models.Node) {
	snapshot := r.context.Snapshot()

	eligible, err := r.graph.EligibleEdges(node.ID, snapshot)
	if err != nil {
		// An unevaluable edge condition is a modeling error; the path
		// cannot be chosen safely so the execution fails.
		r.failure(err)

		for _, edge := range r.graph.OutgoingEdges(node.ID) {
			r.deadEdges[edge.ID] = true
		}

		for _, edge := range r.graph.OutgoingEdges(node.ID) {
			r.trySkip(ctx, edge.Target)
		}

		return
	}

	eligibleSet := make(map[string]bool, len(eligible))
	for _, edge := range eligible {
		eligibleSet[edge.ID] = true
	}

	for _, edge := range r.graph.OutgoingEdges(node.ID) {
		if !eligibleSet[edge.ID] {
			r.deadEdges[edge.ID] = true
		}
	}

	for _, edge := range r.graph.OutgoingEdges(node.ID) {
		if eligibleSet[edge.ID] {
			r.tryDispatch(ctx, edge.Target)
		} else {
			r.trySkip(ctx, edge.Target)
		}
	}
}

// tryDispatch dispatches target if it is ready. Joins gate on their
// incoming branches; everything else runs as soon as one live path
// reaches it. Already started steps are left alone, which is what makes
// readiness idempotent.
func (r *run) tryDispatch(ctx context.Context, nodeID string) {
	step := r.steps[nodeID]
	if !step.Status.Waiting() {
		return
	}

	node, ok := r.graph.Definition().NodeByID(nodeID)
	if !ok {
		return
	}

	if node.Type == models.NodeTypeJoin {
		r.resolveJoin(ctx, node)

		return
	}

	r.dispatch(ctx, node)
}

// resolveJoin checks a join's incoming branches and either dispatches,
// skips, keeps waiting, or starts the timeout clock.
func (r *run) resolveJoin(ctx context.Context, node *models.Node) {
	incoming := r.graph.IncomingEdges(node.ID)
	mode := join.Mode(node)

	var unmet []string

	completed, terminal := 0, 0

	for _, edge := range incoming {
		source := r.steps[edge.Source]

		if r.deadEdges[edge.ID] || source.Status == models.StepStatusSkipped || source.Status == models.StepStatusFailed {
			terminal++

			continue
		}

		if source.Status == models.StepStatusCompleted {
			terminal++
			completed++

			continue
		}

		unmet = append(unmet, edge.Source)
	}

	ready := false

	switch mode {
	case join.WaitAny:
		ready = completed > 0
	default:
		ready = terminal == len(incoming)
	}

	if ready {
		if completed == 0 {
			// Every live branch died before reaching the join.
			r.markSkipped(ctx, node)

			return
		}

		r.dispatch(ctx, node)

		return
	}

	step := r.steps[node.ID]
	step.Status = models.StepStatusBlocked
	step.BlockedBy = unmet
	r.saveStep(ctx, step)

	if _, waiting := r.joinWait[node.ID]; !waiting && terminal > 0 {
		r.joinWait[node.ID] = time.Now().UTC().Add(join.Timeout(node))
	}
}

// trySkip marks target skipped when every incoming edge is dead, then
// cascades the skip downstream.
func (r *run) trySkip(ctx context.Context, nodeID string) {
	step := r.steps[nodeID]
	if !step.Status.Waiting() {
		return
	}

	node, ok := r.graph.Definition().NodeByID(nodeID)
	if !ok {
		return
	}

	for _, edge := range r.graph.IncomingEdges(nodeID) {
		if !r.edgeDead(edge) {
			// A live path may still reach this node. A waiting join
			// must still re-check: the branch that died may have been
			// the last one it was waiting for.
			if node.Type == models.NodeTypeJoin {
				r.resolveJoin(ctx, node)
			}

			return
		}
	}

	r.markSkipped(ctx, node)
}

func (r *run) markSkipped(ctx context.Context, node *models.Node) {
	step := r.steps[node.ID]
	now := time.Now().UTC()
	step.Status = models.StepStatusSkipped
	step.CompletedAt = &now
	step.BlockedBy = nil
	delete(r.joinWait, node.ID)

	r.saveStep(ctx, step)

	r.engine.publish(ctx, r.execution.ID, events.StepSkipped{
		BaseEvent:   events.NewBaseEvent(events.StepSkippedEvent, r.execution.WorkflowID),
		ExecutionID: r.execution.ID,
		StepID:      step.ID,
		NodeID:      node.ID,
	})

	for _, edge := range r.graph.OutgoingEdges(node.ID) {
		r.deadEdges[edge.ID] = true
	}

	for _, edge := range r.graph.OutgoingEdges(node.ID) {
		r.trySkip(ctx, edge.Target)
	}
}

// edgeDead reports whether an edge can no longer fire: its condition
// failed, or its source ended without completing.
func (r *run) edgeDead(edge *models.Edge) bool {
	if r.deadEdges[edge.ID] {
		return true
	}

	source := r.steps[edge.Source]

	return source.Status == models.StepStatusSkipped || source.Status == models.StepStatusFailed
}

// propagateAfterFailure skips what the failed node can no longer reach
// and re-checks joins that were waiting on it.
func (r *run) propagateAfterFailure(ctx context.Context, node *models.Node) {
	for _, edge := range r.graph.OutgoingEdges(node.ID) {
		r.deadEdges[edge.ID] = true
	}

	for _, edge := range r.graph.OutgoingEdges(node.ID) {
		r.trySkip(ctx, edge.Target)
	}
}

// expireJoins fails every waiting join whose deadline has passed.
func (r *run) expireJoins(ctx context.Context) {
	now := time.Now().UTC()

	for nodeID, deadline := range r.joinWait {
		if now.Before(deadline) {
			continue
		}

		node, ok := r.graph.Definition().NodeByID(nodeID)
		if !ok {
			delete(r.joinWait, nodeID)

			continue
		}

		timeoutErr := &TimeoutError{
			ExecutionID: r.execution.ID,
			NodeID:      nodeID,
			Timeout:     join.Timeout(node),
		}

		step := r.steps[nodeID]
		r.recordFailure(ctx, node, step, timeoutErr.Error(), &now)
		r.failure(timeoutErr)
		delete(r.joinWait, nodeID)
		r.propagateAfterFailure(ctx, node)
	}
}

func (r *run) nearestJoinDeadline() (time.Time, bool) {
	var nearest time.Time

	for _, deadline := range r.joinWait {
		if nearest.IsZero() || deadline.Before(nearest) {
			nearest = deadline
		}
	}

	return nearest, !nearest.IsZero()
}

// kick scans the whole graph and dispatches every node whose readiness
// is already satisfied by persisted state. Used by retry, where
// completed steps carry over from the prior execution.
func (r *run) kick(ctx context.Context) {
	definition := r.graph.Definition()

	for _, node := range definition.Nodes {
		step := r.steps[node.ID]
		if step.Status != models.StepStatusCompleted {
			continue
		}

		r.scheduleSuccessors(ctx, node)
	}

	// A failed start node leaves nothing completed to schedule from.
	if start, ok := definition.StartNode(); ok {
		if r.steps[start.ID].Status == models.StepStatusPending {
			r.dispatch(ctx, start)
		}
	}
}

func (r *run) recordFailure(ctx context.Context, node *models.Node, step *models.StepExecution, message string, now *time.Time) {
	step.Status = models.StepStatusFailed
	step.ErrorMessage = message
	step.CompletedAt = now
	r.saveStep(ctx, step)
	r.publishStepFailed(ctx, step)
}

// failure records the first error as the execution's error.
func (r *run) failure(err error) {
	if r.firstErr == nil {
		r.firstErr = err
	}
}

// checkpoint persists the current context on the execution record so a
// crash or pause never loses acknowledged step output.
func (r *run) checkpoint(ctx context.Context) {
	r.execution.Context = r.context.Snapshot()

	if err := r.engine.store.SaveExecution(ctx, r.execution); err != nil {
		r.engine.logger.Error("Failed to checkpoint execution context",
			"execution_id", r.execution.ID, "error", err)
	}
}

// finalize settles the execution status once the run is quiescent.
func (r *run) finalize(ctx context.Context) (*models.WorkflowExecution, error) {
	var failed, paused bool

	for _, step := range r.steps {
		switch step.Status {
		case models.StepStatusFailed:
			failed = true
		case models.StepStatusPaused:
			paused = true
		}
	}

	// An unevaluable edge condition fails the run without failing any
	// step, so the recorded error counts on its own.
	failed = failed || r.firstErr != nil

	if !failed && !paused && !r.endReached() {
		// Every path to an end node went dead, so the run finished
		// without producing a terminal result.
		r.failure(errMessage("no end node reached: every path to an end node was skipped"))

		failed = true
	}

	now := time.Now().UTC()
	r.execution.Context = r.context.Snapshot()

	switch {
	case failed:
		r.execution.Status = models.ExecutionStatusFailed
		r.execution.CompletedAt = &now

		if r.firstErr != nil {
			r.execution.ErrorMessage = r.firstErr.Error()
		}
	case paused:
		r.execution.Status = models.ExecutionStatusPaused
	default:
		r.execution.Status = models.ExecutionStatusCompleted
		r.execution.CompletedAt = &now
	}

	if err := r.engine.store.SaveExecution(ctx, r.execution); err != nil {
		return nil, err
	}

	duration := now.Sub(r.execution.StartedAt).Milliseconds()

	switch r.execution.Status {
	case models.ExecutionStatusCompleted:
		r.engine.publish(ctx, r.execution.ID, events.ExecutionCompleted{
			BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, r.execution.WorkflowID),
			ExecutionID:   r.execution.ID,
			DurationMs:    duration,
			StepsExecuted: r.stepsRun,
		})
	case models.ExecutionStatusFailed:
		failedNode := ""

		if nodeErr, ok := r.firstErr.(*NodeExecutionError); ok {
			failedNode = nodeErr.NodeID
		} else if timeoutErr, ok := r.firstErr.(*TimeoutError); ok {
			failedNode = timeoutErr.NodeID
		}

		r.engine.publish(ctx, r.execution.ID, events.ExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, r.execution.WorkflowID),
			ExecutionID: r.execution.ID,
			NodeID:      failedNode,
			Error:       r.execution.ErrorMessage,
			DurationMs:  duration,
		})
	}

	return r.execution, nil
}

// endReached reports whether at least one end node completed.
func (r *run) endReached() bool {
	for _, node := range r.graph.Definition().Nodes {
		if node.Type != models.NodeTypeEnd {
			continue
		}

		if r.steps[node.ID].Status == models.StepStatusCompleted {
			return true
		}
	}

	return false
}

func (r *run) saveStep(ctx context.Context, step *models.StepExecution) {
	if err := r.engine.store.SaveStep(ctx, step); err != nil {
		r.engine.logger.Error("Failed to persist step execution",
			"step_id", step.ID, "node_id", step.NodeID, "error", err)
	}
}

func (r *run) publishStepCompleted(ctx context.Context, step *models.StepExecution, durationMs int64) {
	r.engine.publish(ctx, r.execution.ID, events.StepCompleted{
		BaseEvent:   events.NewBaseEvent(events.StepCompletedEvent, r.execution.WorkflowID),
		ExecutionID: r.execution.ID,
		StepID:      step.ID,
		NodeID:      step.NodeID,
		Output:      step.Output,
		DurationMs:  durationMs,
	})
}

func (r *run) publishStepFailed(ctx context.Context, step *models.StepExecution) {
	r.engine.publish(ctx, r.execution.ID, events.StepFailed{
		BaseEvent:   events.NewBaseEvent(events.StepFailedEvent, r.execution.WorkflowID),
		ExecutionID: r.execution.ID,
		StepID:      step.ID,
		NodeID:      step.NodeID,
		Error:       step.ErrorMessage,
	})
}

func startedOrNow(step *models.StepExecution) time.Time {
	if step.StartedAt != nil {
		return *step.StartedAt
	}

	return time.Now().UTC()
}

type plainError string

func (e plainError) Error() string {
	return string(e)
}

func errMessage(message string) error {
	return plainError(message)
}
