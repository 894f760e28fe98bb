// Package postgresql provides PostgreSQL persistence for workflow
// definitions, executions and step executions.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	definitionRepo *DefinitionRepository
	executionRepo  *ExecutionRepository
	stepRepo       *StepRepository
}

// NewPersistence connects, runs migrations and wires the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		definitionRepo: NewDefinitionRepository(database, logger),
		executionRepo:  NewExecutionRepository(database, logger),
		stepRepo:       NewStepRepository(database, logger),
	}, nil
}

// DB exposes the underlying handle so database-node row stores can share
// the connection pool.
func (p *Persistence) DB() *sql.DB {
	return p.db
}

func (p *Persistence) Definitions(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return p.definitionRepo.GetAll(ctx)
}

func (p *Persistence) DefinitionByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return p.definitionRepo.GetLatest(ctx, id)
}

func (p *Persistence) DefinitionByVersion(ctx context.Context, id string, version int) (*models.WorkflowDefinition, error) {
	return p.definitionRepo.GetVersion(ctx, id, version)
}

func (p *Persistence) SaveDefinition(ctx context.Context, definition *models.WorkflowDefinition) error {
	return p.definitionRepo.Save(ctx, definition)
}

func (p *Persistence) DeleteDefinition(ctx context.Context, id string) error {
	return p.definitionRepo.Delete(ctx, id)
}

func (p *Persistence) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	return p.executionRepo.Save(ctx, execution)
}

func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return p.executionRepo.GetByID(ctx, id)
}

func (p *Persistence) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	return p.executionRepo.GetByWorkflow(ctx, workflowID)
}

func (p *Persistence) SaveStep(ctx context.Context, step *models.StepExecution) error {
	return p.stepRepo.Save(ctx, step)
}

func (p *Persistence) StepByID(ctx context.Context, id string) (*models.StepExecution, error) {
	return p.stepRepo.GetByID(ctx, id)
}

func (p *Persistence) StepsByExecution(ctx context.Context, executionID string) ([]*models.StepExecution, error) {
	return p.stepRepo.GetByExecution(ctx, executionID)
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
