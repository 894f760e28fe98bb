// Package engine orchestrates workflow executions: it walks the graph,
// dispatches ready nodes to their handlers, checkpoints every status
// transition and drives the pause, resume and retry protocols.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/credenflow/credenflow/pkg/eventbus"
	"github.com/credenflow/credenflow/pkg/events"
	"github.com/credenflow/credenflow/pkg/expr"
	"github.com/credenflow/credenflow/pkg/graph"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/otelhelper"
	"github.com/credenflow/credenflow/pkg/persistence"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/registry"
)

type Engine struct {
	store     persistence.Persistence
	registry  *registry.Registry
	deps      protocol.Dependencies
	bus       eventbus.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer
	evaluator expr.Evaluator
}

type Option func(*Engine)

func WithEventBus(bus eventbus.EventPublisher) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

func WithDependencies(deps protocol.Dependencies) Option {
	return func(e *Engine) {
		e.deps = deps
	}
}

func New(logger *slog.Logger, store persistence.Persistence, reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		registry:  reg,
		logger:    logger.With("module", "engine"),
		tracer:    otel.Tracer("credenflow/engine"),
		evaluator: expr.NewInterpreter(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.deps.Logger == nil {
		e.deps.Logger = e.logger
	}

	return e
}

// ResumeRequest is the continue-workflow payload: the resume token, the
// verdict, and any data collected while the step was paused.
type ResumeRequest struct {
	StepExecutionID string          `json:"stepExecutionId" validate:"required"`
	Decision        models.Decision `json:"decision"        validate:"required"`
	ResumeData      map[string]any  `json:"resumeData,omitempty"`
}

// CreateExecution validates the workflow's latest active version and
// records a pending execution with one pending step per node. Nothing
// runs until Run picks the execution up.
func (e *Engine) CreateExecution(ctx context.Context, workflowID string, input map[string]any) (*models.WorkflowExecution, error) {
	definition, err := e.store.DefinitionByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !definition.IsActive {
		return nil, persistence.ErrDefinitionInactive
	}

	if _, err := graph.New(definition, e.evaluator); err != nil {
		return nil, err
	}

	execution := &models.WorkflowExecution{
		ID:              uuid.New().String(),
		WorkflowID:      definition.ID,
		WorkflowVersion: definition.Version,
		Status:          models.ExecutionStatusPending,
		Context:         deepCopy(input),
		InputData:       deepCopy(input),
		StartedAt:       time.Now().UTC(),
	}

	if err := e.store.SaveExecution(ctx, execution); err != nil {
		return nil, err
	}

	for _, node := range definition.Nodes {
		step := &models.StepExecution{
			ID:          uuid.New().String(),
			ExecutionID: execution.ID,
			NodeID:      node.ID,
			NodeType:    node.Type,
			Status:      models.StepStatusPending,
		}

		if err := e.store.SaveStep(ctx, step); err != nil {
			return nil, err
		}
	}

	return execution, nil
}

// Run drives a created execution to quiescence: completed, failed, or
// paused awaiting external input.
func (e *Engine) Run(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := e.store.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status.Terminal() {
		return execution, nil
	}

	r, _, err := e.rebuild(ctx, execution)
	if err != nil {
		return nil, err
	}

	execution.Status = models.ExecutionStatusRunning
	if err := e.store.SaveExecution(ctx, execution); err != nil {
		return nil, err
	}

	e.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:       events.NewBaseEvent(events.ExecutionStartedEvent, execution.WorkflowID),
		ExecutionID:     execution.ID,
		WorkflowVersion: execution.WorkflowVersion,
		InputData:       execution.InputData,
		IsRetry:         execution.PreviousExecutionID != nil,
	})

	ctx, span := e.tracer.Start(ctx, "engine.execute",
		trace.WithAttributes(
			attribute.String(otelhelper.WorkflowIDKey, execution.WorkflowID),
			attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		))
	defer span.End()

	r.kick(ctx)
	r.loop(ctx)

	return r.finalize(ctx)
}

// Start creates and immediately runs a new execution.
func (e *Engine) Start(ctx context.Context, workflowID string, input map[string]any) (*models.WorkflowExecution, error) {
	execution, err := e.CreateExecution(ctx, workflowID, input)
	if err != nil {
		return nil, err
	}

	return e.Run(ctx, execution.ID)
}

// Resume completes or fails a paused step according to the decision and
// continues the execution from there.
func (e *Engine) Resume(ctx context.Context, req ResumeRequest) (*models.WorkflowExecution, error) {
	if !req.Decision.Valid() {
		return nil, newResumeError(req.StepExecutionID, fmt.Sprintf("unknown decision '%s'", req.Decision), ErrInvalidDecision)
	}

	step, err := e.store.StepByID(ctx, req.StepExecutionID)
	if err != nil {
		return nil, newResumeError(req.StepExecutionID, "no step execution with this id", err)
	}

	if step.Status != models.StepStatusPaused {
		return nil, newResumeError(req.StepExecutionID,
			fmt.Sprintf("step is %s, not paused", step.Status), ErrStepNotPaused)
	}

	execution, err := e.store.ExecutionByID(ctx, step.ExecutionID)
	if err != nil {
		return nil, err
	}

	if execution.Status.Terminal() {
		return nil, newResumeError(req.StepExecutionID,
			fmt.Sprintf("execution %s is %s", execution.ID, execution.Status), ErrExecutionNotResumable)
	}

	r, g, err := e.rebuild(ctx, execution)
	if err != nil {
		return nil, err
	}

	node, ok := g.Definition().NodeByID(step.NodeID)
	if !ok {
		return nil, newResumeError(req.StepExecutionID, "step's node no longer exists in the definition", nil)
	}

	r.context.Merge(req.ResumeData)

	now := time.Now().UTC()
	step.CompletedAt = &now

	if step.Output == nil {
		step.Output = map[string]any{}
	}

	step.Output["decision"] = string(req.Decision)

	e.publish(ctx, execution.ID, events.ExecutionResumed{
		BaseEvent:       events.NewBaseEvent(events.ExecutionResumedEvent, execution.WorkflowID),
		ExecutionID:     execution.ID,
		StepExecutionID: step.ID,
		Decision:        req.Decision,
	})

	execution.Status = models.ExecutionStatusRunning
	if err := e.store.SaveExecution(ctx, execution); err != nil {
		return nil, err
	}

	if req.Decision == models.DecisionRejected {
		step.Status = models.StepStatusFailed
		step.ErrorMessage = "rejected by reviewer"
		r.steps[step.NodeID] = step

		if err := e.store.SaveStep(ctx, step); err != nil {
			return nil, err
		}

		r.publishStepFailed(ctx, step)
		r.failure(&NodeExecutionError{
			ExecutionID: execution.ID,
			NodeID:      step.NodeID,
			NodeType:    string(step.NodeType),
			Err:         errMessage("rejected by reviewer"),
		})
		r.propagateAfterFailure(ctx, node)
	} else {
		step.Status = models.StepStatusCompleted
		r.steps[step.NodeID] = step

		if err := e.store.SaveStep(ctx, step); err != nil {
			return nil, err
		}

		r.publishStepCompleted(ctx, step, 0)
		r.checkpoint(ctx)
		r.scheduleSuccessors(ctx, node)
	}

	r.loop(ctx)

	return r.finalize(ctx)
}

// Retry creates a fresh execution from a failed one. Completed and
// skipped steps carry forward; failed and unreached steps run again.
// The failed execution is left untouched.
func (e *Engine) Retry(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	prior, err := e.store.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if prior.Status != models.ExecutionStatusFailed {
		return nil, fmt.Errorf("%w: execution %s is %s", ErrExecutionNotFailed, prior.ID, prior.Status)
	}

	definition, err := e.store.DefinitionByVersion(ctx, prior.WorkflowID, prior.WorkflowVersion)
	if err != nil {
		return nil, err
	}

	priorSteps, err := e.store.StepsByExecution(ctx, prior.ID)
	if err != nil {
		return nil, err
	}

	priorByNode := make(map[string]*models.StepExecution, len(priorSteps))
	for _, step := range priorSteps {
		priorByNode[step.NodeID] = step
	}

	execution := &models.WorkflowExecution{
		ID:                  uuid.New().String(),
		WorkflowID:          prior.WorkflowID,
		WorkflowVersion:     prior.WorkflowVersion,
		Status:              models.ExecutionStatusRunning,
		Context:             deepCopy(prior.Context),
		InputData:           deepCopy(prior.InputData),
		PreviousExecutionID: &prior.ID,
		StartedAt:           time.Now().UTC(),
	}

	if err := e.store.SaveExecution(ctx, execution); err != nil {
		return nil, err
	}

	for _, node := range definition.Nodes {
		step := &models.StepExecution{
			ID:          uuid.New().String(),
			ExecutionID: execution.ID,
			NodeID:      node.ID,
			NodeType:    node.Type,
			Status:      models.StepStatusPending,
		}

		if previous, ok := priorByNode[node.ID]; ok {
			switch previous.Status {
			case models.StepStatusCompleted, models.StepStatusSkipped:
				step.Status = previous.Status
				step.Output = deepCopy(previous.Output)
				step.RetryCount = previous.RetryCount
				step.StartedAt = previous.StartedAt
				step.CompletedAt = previous.CompletedAt
			case models.StepStatusFailed:
				step.RetryCount = previous.RetryCount + 1
			}
		}

		if err := e.store.SaveStep(ctx, step); err != nil {
			return nil, err
		}
	}

	return e.Run(ctx, execution.ID)
}

// State assembles the read model for one execution.
func (e *Engine) State(ctx context.Context, executionID string) (*models.WorkflowState, error) {
	execution, err := e.store.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	steps, err := e.store.StepsByExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	return models.BuildWorkflowState(execution, steps), nil
}

// rebuild reconstructs a run from persisted state so a resumed execution
// continues where it left off.
func (e *Engine) rebuild(ctx context.Context, execution *models.WorkflowExecution) (*run, *graph.Graph, error) {
	definition, err := e.store.DefinitionByVersion(ctx, execution.WorkflowID, execution.WorkflowVersion)
	if err != nil {
		return nil, nil, err
	}

	g, err := graph.New(definition, e.evaluator)
	if err != nil {
		return nil, nil, err
	}

	persisted, err := e.store.StepsByExecution(ctx, execution.ID)
	if err != nil {
		return nil, nil, err
	}

	steps := make(map[string]*models.StepExecution, len(persisted))
	for _, step := range persisted {
		steps[step.NodeID] = step
	}

	return newRun(e, g, execution, steps), g, nil
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, key, event); err != nil {
		e.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// deepCopy clones a JSON-shaped map so retries and checkpoints never
// alias live state.
func deepCopy(source map[string]any) map[string]any {
	if source == nil {
		return map[string]any{}
	}

	raw, err := json.Marshal(source)
	if err != nil {
		clone := make(map[string]any, len(source))
		for k, v := range source {
			clone[k] = v
		}

		return clone
	}

	var clone map[string]any
	if err := json.Unmarshal(raw, &clone); err != nil {
		return map[string]any{}
	}

	return clone
}
