package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/credenflow/credenflow/pkg/engine"
	"github.com/credenflow/credenflow/pkg/eventbus"
	"github.com/credenflow/credenflow/pkg/events"
	"github.com/credenflow/credenflow/pkg/persistence"
)

// Worker consumes execution commands from the bus and drives them with
// the engine. A cron job periodically requeues executions orphaned by a
// crashed worker.
type Worker struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *engine.Engine
	eventBus    eventbus.EventBus
	sweeper     *Sweeper
	schedule    string
}

func NewWorker(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	eng *engine.Engine,
	sweeper *Sweeper,
	schedule string,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:          id,
		logger:      logger.With("module", "credenflow-worker", "worker_id", id),
		persistence: persistence,
		engine:      eng,
		eventBus:    eventBus,
		sweeper:     sweeper,
		schedule:    schedule,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker", "worker_id", w.id)

	err := w.eventBus.Handle(events.ExecutionRequestedEvent, w.handleExecutionRequested)
	if err != nil {
		return err
	}

	err = w.eventBus.Handle(events.ResumeRequestedEvent, w.handleResumeRequested)
	if err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	scheduler := cron.New()

	_, err = scheduler.AddFunc(w.schedule, func() {
		if err := w.sweeper.Sweep(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	scheduler.Start()
	defer scheduler.Stop()

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *Worker) handleExecutionRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.ExecutionRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecutionRequested")

		return nil
	}

	logger := w.logger.With(
		"workflow_id", requested.WorkflowID,
		"execution_id", requested.ExecutionID,
	)
	logger.InfoContext(ctx, "Running requested execution")

	execution, err := w.engine.Run(ctx, requested.ExecutionID)
	if err != nil {
		logger.ErrorContext(ctx, "Execution run failed", "error", err)

		// Nacking would redeliver a request the engine already rejected,
		// so the error is terminal for this message.
		return nil
	}

	logger.InfoContext(ctx, "Execution finished", "status", execution.Status)

	return nil
}

func (w *Worker) handleResumeRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.ResumeRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ResumeRequested")

		return nil
	}

	logger := w.logger.With(
		"execution_id", requested.ExecutionID,
		"step_execution_id", requested.StepExecutionID,
	)
	logger.InfoContext(ctx, "Resuming paused execution")

	execution, err := w.engine.Resume(ctx, engine.ResumeRequest{
		StepExecutionID: requested.StepExecutionID,
		Decision:        requested.Decision,
		ResumeData:      requested.ResumeData,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Resume failed", "error", err)

		return nil
	}

	logger.InfoContext(ctx, "Execution resumed", "status", execution.Status)

	return nil
}
