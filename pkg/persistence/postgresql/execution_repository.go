package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/persistence"
)

// ExecutionRepository handles workflow execution rows.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `id, workflow_id, workflow_version, status, context, input_data,
	error_message, previous_execution_id, started_at, completed_at`

// Save upserts the execution record.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	contextJSON, err := json.Marshal(execution.Context)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", "execution", execution.ID,
			fmt.Errorf("failed to marshal context: %w", err))
	}

	inputJSON, err := json.Marshal(execution.InputData)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", "execution", execution.ID,
			fmt.Errorf("failed to marshal input data: %w", err))
	}

	query := `
		INSERT INTO workflow_executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			context = EXCLUDED.context,
			error_message = EXCLUDED.error_message,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.WorkflowVersion,
		execution.Status,
		contextJSON,
		inputJSON,
		execution.ErrorMessage,
		execution.PreviousExecutionID,
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", "execution", execution.ID, err)
	}

	return nil
}

// GetByID returns one execution.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE id = $1`

	execution, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("ExecutionByID", "execution", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewStoreError("ExecutionByID", "execution", id, err)
	}

	return execution, nil
}

// GetByWorkflow returns all executions of a workflow, oldest first.
func (r *ExecutionRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY started_at
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, persistence.NewStoreError("ExecutionsByWorkflow", "execution", workflowID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var executions []*models.WorkflowExecution

	for rows.Next() {
		execution, err := r.scan(rows)
		if err != nil {
			return nil, persistence.NewStoreError("ExecutionsByWorkflow", "execution", workflowID, err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("ExecutionsByWorkflow", "execution", workflowID, err)
	}

	return executions, nil
}

func (r *ExecutionRepository) scan(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution   models.WorkflowExecution
		contextJSON []byte
		inputJSON   []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.WorkflowVersion,
		&execution.Status,
		&contextJSON,
		&inputJSON,
		&execution.ErrorMessage,
		&execution.PreviousExecutionID,
		&execution.StartedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(contextJSON, &execution.Context); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context: %w", err)
	}

	if err := json.Unmarshal(inputJSON, &execution.InputData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input data: %w", err)
	}

	return &execution, nil
}
