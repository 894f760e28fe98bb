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

// StepRepository handles step execution rows.
type StepRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStepRepository creates a new step repository.
func NewStepRepository(db *sql.DB, logger *slog.Logger) *StepRepository {
	return &StepRepository{db: db, logger: logger}
}

const stepColumns = `id, execution_id, node_id, node_type, status, output,
	error_message, progress, retry_count, blocked_by, started_at, completed_at`

// Save upserts the step record.
func (r *StepRepository) Save(ctx context.Context, step *models.StepExecution) error {
	outputJSON, err := json.Marshal(step.Output)
	if err != nil {
		return persistence.NewStoreError("SaveStep", "step", step.ID,
			fmt.Errorf("failed to marshal output: %w", err))
	}

	blockedByJSON, err := json.Marshal(step.BlockedBy)
	if err != nil {
		return persistence.NewStoreError("SaveStep", "step", step.ID,
			fmt.Errorf("failed to marshal blocked_by: %w", err))
	}

	query := `
		INSERT INTO workflow_step_executions (` + stepColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			output = EXCLUDED.output,
			error_message = EXCLUDED.error_message,
			progress = EXCLUDED.progress,
			retry_count = EXCLUDED.retry_count,
			blocked_by = EXCLUDED.blocked_by,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		step.ID,
		step.ExecutionID,
		step.NodeID,
		step.NodeType,
		step.Status,
		outputJSON,
		step.ErrorMessage,
		step.Progress,
		step.RetryCount,
		blockedByJSON,
		step.StartedAt,
		step.CompletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("SaveStep", "step", step.ID, err)
	}

	return nil
}

// GetByID returns one step execution.
func (r *StepRepository) GetByID(ctx context.Context, id string) (*models.StepExecution, error) {
	query := `SELECT ` + stepColumns + ` FROM workflow_step_executions WHERE id = $1`

	step, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("StepByID", "step", id, persistence.ErrStepNotFound)
		}

		return nil, persistence.NewStoreError("StepByID", "step", id, err)
	}

	return step, nil
}

// GetByExecution returns all step records of an execution.
func (r *StepRepository) GetByExecution(ctx context.Context, executionID string) ([]*models.StepExecution, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM workflow_step_executions
		WHERE execution_id = $1
		ORDER BY node_id
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, persistence.NewStoreError("StepsByExecution", "step", executionID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var steps []*models.StepExecution

	for rows.Next() {
		step, err := r.scan(rows)
		if err != nil {
			return nil, persistence.NewStoreError("StepsByExecution", "step", executionID, err)
		}

		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("StepsByExecution", "step", executionID, err)
	}

	return steps, nil
}

func (r *StepRepository) scan(row rowScanner) (*models.StepExecution, error) {
	var (
		step          models.StepExecution
		outputJSON    []byte
		blockedByJSON []byte
	)

	err := row.Scan(
		&step.ID,
		&step.ExecutionID,
		&step.NodeID,
		&step.NodeType,
		&step.Status,
		&outputJSON,
		&step.ErrorMessage,
		&step.Progress,
		&step.RetryCount,
		&blockedByJSON,
		&step.StartedAt,
		&step.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(outputJSON, &step.Output); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}

	if err := json.Unmarshal(blockedByJSON, &step.BlockedBy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal blocked_by: %w", err)
	}

	return &step, nil
}
