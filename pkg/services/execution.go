package services

import (
	"context"
	"fmt"

	"github.com/credenflow/credenflow/pkg/engine"
	"github.com/credenflow/credenflow/pkg/eventbus"
	"github.com/credenflow/credenflow/pkg/events"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/persistence"
)

// ErrExecutionNotFound is returned when an execution is not found.
var ErrExecutionNotFound = persistence.ErrExecutionNotFound

// Execution starts, continues and retries workflow executions. With a
// dispatcher configured, the work is handed to a worker over the
// command topic and the API returns immediately; without one, the
// engine runs in-process.
type Execution struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	dispatcher  eventbus.EventPublisher
}

func NewExecution(p persistence.Persistence, eng *engine.Engine) *Execution {
	return &Execution{persistence: p, engine: eng}
}

// WithDispatcher makes Execute, Continue and Retry asynchronous.
func (s *Execution) WithDispatcher(dispatcher eventbus.EventPublisher) *Execution {
	s.dispatcher = dispatcher

	return s
}

// Execute creates an execution of the workflow's latest active version.
func (s *Execution) Execute(ctx context.Context, workflowID string, input map[string]any) (*models.WorkflowExecution, error) {
	execution, err := s.engine.CreateExecution(ctx, workflowID, input)
	if err != nil {
		return nil, err
	}

	if s.dispatcher == nil {
		return s.engine.Run(ctx, execution.ID)
	}

	event := events.ExecutionRequested{
		BaseEvent:   events.NewBaseEvent(events.ExecutionRequestedEvent, workflowID),
		ExecutionID: execution.ID,
	}

	if err := s.dispatcher.Publish(ctx, execution.ID, event); err != nil {
		return nil, fmt.Errorf("failed to dispatch execution: %w", err)
	}

	return execution, nil
}

// Continue resumes a paused step with a decision and any collected data.
// The resume token is validated here even in asynchronous mode so the
// caller gets an immediate verdict on a stale or wrong token.
func (s *Execution) Continue(ctx context.Context, req engine.ResumeRequest) (*models.WorkflowExecution, error) {
	if s.dispatcher == nil {
		return s.engine.Resume(ctx, req)
	}

	step, err := s.persistence.StepByID(ctx, req.StepExecutionID)
	if err != nil {
		return nil, &engine.ResumeValidationError{
			StepExecutionID: req.StepExecutionID,
			Reason:          "no step execution with this id",
			Err:             err,
		}
	}

	if step.Status != models.StepStatusPaused {
		return nil, &engine.ResumeValidationError{
			StepExecutionID: req.StepExecutionID,
			Reason:          fmt.Sprintf("step is %s, not paused", step.Status),
			Err:             engine.ErrStepNotPaused,
		}
	}

	if !req.Decision.Valid() {
		return nil, &engine.ResumeValidationError{
			StepExecutionID: req.StepExecutionID,
			Reason:          fmt.Sprintf("unknown decision '%s'", req.Decision),
			Err:             engine.ErrInvalidDecision,
		}
	}

	execution, err := s.persistence.ExecutionByID(ctx, step.ExecutionID)
	if err != nil {
		return nil, err
	}

	event := events.ResumeRequested{
		BaseEvent:       events.NewBaseEvent(events.ResumeRequestedEvent, execution.WorkflowID),
		ExecutionID:     execution.ID,
		StepExecutionID: req.StepExecutionID,
		Decision:        req.Decision,
		ResumeData:      req.ResumeData,
	}

	if err := s.dispatcher.Publish(ctx, execution.ID, event); err != nil {
		return nil, fmt.Errorf("failed to dispatch resume: %w", err)
	}

	return execution, nil
}

// Retry re-runs a failed execution as a new one.
func (s *Execution) Retry(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return s.engine.Retry(ctx, executionID)
}

func (s *Execution) Get(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return s.persistence.ExecutionByID(ctx, executionID)
}

func (s *Execution) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	return s.persistence.ExecutionsByWorkflow(ctx, workflowID)
}

// State assembles the graph-view read model for one execution.
func (s *Execution) State(ctx context.Context, executionID string) (*models.WorkflowState, error) {
	return s.engine.State(ctx, executionID)
}

// Steps lists the step executions of one execution.
func (s *Execution) Steps(ctx context.Context, executionID string) ([]*models.StepExecution, error) {
	if _, err := s.persistence.ExecutionByID(ctx, executionID); err != nil {
		return nil, err
	}

	return s.persistence.StepsByExecution(ctx, executionID)
}
