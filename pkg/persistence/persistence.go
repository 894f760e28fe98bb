// Package persistence provides the durable storage abstraction for
// workflow definitions, executions and step executions.
package persistence

import (
	"context"

	"github.com/credenflow/credenflow/pkg/models"
)

// Persistence is the engine's durability boundary. Every status transition
// is written through here before the orchestrator proceeds, so a crash
// between ticks loses at most the in-flight tick.
type Persistence interface {
	// Workflow definitions. Definitions are immutable per (id, version);
	// SaveDefinition stores the given version without mutating prior ones.
	Definitions(ctx context.Context) ([]*models.WorkflowDefinition, error)
	DefinitionByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	DefinitionByVersion(ctx context.Context, id string, version int) (*models.WorkflowDefinition, error)
	SaveDefinition(ctx context.Context, definition *models.WorkflowDefinition) error
	DeleteDefinition(ctx context.Context, id string) error

	// Executions.
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)

	// Step executions.
	SaveStep(ctx context.Context, step *models.StepExecution) error
	StepByID(ctx context.Context, id string) (*models.StepExecution, error)
	StepsByExecution(ctx context.Context, executionID string) ([]*models.StepExecution, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
