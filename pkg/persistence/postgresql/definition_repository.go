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

// DefinitionRepository handles workflow definition rows. Definitions are
// append-only per (id, version).
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

const definitionColumns = `id, version, name, description, nodes, edges, is_active, created_at, updated_at`

// Save inserts the definition version. Saving an existing (id, version)
// pair updates it in place, which only happens for drafts.
func (r *DefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	nodesJSON, err := json.Marshal(definition.Nodes)
	if err != nil {
		return persistence.NewStoreError("SaveDefinition", "definition", definition.ID,
			fmt.Errorf("failed to marshal nodes: %w", err))
	}

	edgesJSON, err := json.Marshal(definition.Edges)
	if err != nil {
		return persistence.NewStoreError("SaveDefinition", "definition", definition.ID,
			fmt.Errorf("failed to marshal edges: %w", err))
	}

	query := `
		INSERT INTO workflows (` + definitionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id, version) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		definition.ID,
		definition.Version,
		definition.Name,
		definition.Description,
		nodesJSON,
		edgesJSON,
		definition.IsActive,
		definition.CreatedAt,
		definition.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("SaveDefinition", "definition", definition.ID, err)
	}

	return nil
}

// GetLatest returns the highest version stored for id.
func (r *DefinitionRepository) GetLatest(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM workflows
		WHERE id = $1
		ORDER BY version DESC
		LIMIT 1
	`

	definition, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("DefinitionByID", "definition", id, persistence.ErrDefinitionNotFound)
		}

		return nil, persistence.NewStoreError("DefinitionByID", "definition", id, err)
	}

	return definition, nil
}

// GetVersion returns one pinned (id, version) pair.
func (r *DefinitionRepository) GetVersion(ctx context.Context, id string, version int) (*models.WorkflowDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM workflows
		WHERE id = $1 AND version = $2
	`

	definition, err := r.scan(r.db.QueryRowContext(ctx, query, id, version))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("DefinitionByVersion", "definition", id, persistence.ErrDefinitionNotFound)
		}

		return nil, persistence.NewStoreError("DefinitionByVersion", "definition", id, err)
	}

	return definition, nil
}

// GetAll returns the latest version of every definition.
func (r *DefinitionRepository) GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `
		SELECT DISTINCT ON (id) ` + definitionColumns + `
		FROM workflows
		ORDER BY id, version DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, persistence.NewStoreError("Definitions", "definition", "", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var definitions []*models.WorkflowDefinition

	for rows.Next() {
		definition, err := r.scan(rows)
		if err != nil {
			return nil, persistence.NewStoreError("Definitions", "definition", "", err)
		}

		definitions = append(definitions, definition)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("Definitions", "definition", "", err)
	}

	return definitions, nil
}

// Delete removes every version of the definition.
func (r *DefinitionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return persistence.NewStoreError("DeleteDefinition", "definition", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("DeleteDefinition", "definition", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("DeleteDefinition", "definition", id, persistence.ErrDefinitionNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DefinitionRepository) scan(row rowScanner) (*models.WorkflowDefinition, error) {
	var (
		definition models.WorkflowDefinition
		nodesJSON  []byte
		edgesJSON  []byte
	)

	err := row.Scan(
		&definition.ID,
		&definition.Version,
		&definition.Name,
		&definition.Description,
		&nodesJSON,
		&edgesJSON,
		&definition.IsActive,
		&definition.CreatedAt,
		&definition.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodesJSON, &definition.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}

	if err := json.Unmarshal(edgesJSON, &definition.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}

	return &definition, nil
}
