package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/credenflow/credenflow/pkg/eventbus"
	"github.com/credenflow/credenflow/pkg/events"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/persistence"
)

// Sweeper requeues executions stranded in the running state, which
// happens when the worker driving them dies mid-flight. Running steps
// are reset to pending so the engine dispatches them again on replay.
type Sweeper struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	staleAfter  time.Duration
}

func NewSweeper(
	logger *slog.Logger,
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	staleAfter time.Duration,
) *Sweeper {
	return &Sweeper{
		logger:      logger.With("module", "sweeper"),
		persistence: persistence,
		publisher:   publisher,
		staleAfter:  staleAfter,
	}
}

func (s *Sweeper) Sweep(ctx context.Context) error {
	definitions, err := s.persistence.Definitions(ctx)
	if err != nil {
		return err
	}

	for _, definition := range definitions {
		executions, err := s.persistence.ExecutionsByWorkflow(ctx, definition.ID)
		if err != nil {
			return err
		}

		for _, execution := range executions {
			if execution.Status != models.ExecutionStatusRunning {
				continue
			}

			stale, err := s.isStale(ctx, execution)
			if err != nil {
				return err
			}

			if !stale {
				continue
			}

			if err := s.requeue(ctx, execution); err != nil {
				return err
			}
		}
	}

	return nil
}

// isStale reports whether no step of the execution has made progress
// within the stale window.
func (s *Sweeper) isStale(ctx context.Context, execution *models.WorkflowExecution) (bool, error) {
	steps, err := s.persistence.StepsByExecution(ctx, execution.ID)
	if err != nil {
		return false, err
	}

	last := execution.StartedAt

	for _, step := range steps {
		if step.StartedAt != nil && step.StartedAt.After(last) {
			last = *step.StartedAt
		}

		if step.CompletedAt != nil && step.CompletedAt.After(last) {
			last = *step.CompletedAt
		}
	}

	return time.Since(last) > s.staleAfter, nil
}

func (s *Sweeper) requeue(ctx context.Context, execution *models.WorkflowExecution) error {
	steps, err := s.persistence.StepsByExecution(ctx, execution.ID)
	if err != nil {
		return err
	}

	for _, step := range steps {
		if step.Status != models.StepStatusRunning {
			continue
		}

		step.Status = models.StepStatusPending
		step.StartedAt = nil

		if err := s.persistence.SaveStep(ctx, step); err != nil {
			return err
		}
	}

	s.logger.InfoContext(ctx, "Requeueing stale execution",
		"execution_id", execution.ID,
		"workflow_id", execution.WorkflowID)

	event := events.ExecutionRequested{
		BaseEvent:   events.NewBaseEvent(events.ExecutionRequestedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
	}

	return s.publisher.Publish(ctx, execution.ID, event)
}
