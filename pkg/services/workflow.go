package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/credenflow/credenflow/pkg/expr"
	"github.com/credenflow/credenflow/pkg/graph"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/persistence"
	"github.com/credenflow/credenflow/pkg/registry"
)

// ErrWorkflowNotFound is returned when a workflow definition is not found.
var ErrWorkflowNotFound = persistence.ErrDefinitionNotFound

// Workflow manages workflow definitions. Definitions are versioned:
// updates always create a new version, so in-flight executions keep the
// graph they started with.
type Workflow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
	evaluator   expr.Evaluator
}

func NewWorkflow(p persistence.Persistence, reg *registry.Registry) *Workflow {
	return &Workflow{
		persistence: p,
		registry:    reg,
		validate:    validator.New(),
		evaluator:   expr.NewInterpreter(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := w.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (w *Workflow) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return w.persistence.Definitions(ctx)
}

func (w *Workflow) Get(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return w.persistence.DefinitionByID(ctx, id)
}

func (w *Workflow) GetVersion(ctx context.Context, id string, version int) (*models.WorkflowDefinition, error) {
	return w.persistence.DefinitionByVersion(ctx, id, version)
}

// Create validates and stores version 1 of a new workflow definition.
func (w *Workflow) Create(ctx context.Context, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if err := w.validateDefinition(ctx, definition); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if definition.ID == "" {
		definition.ID = uuid.New().String()
	}

	definition.Version = 1
	definition.IsActive = true
	definition.CreatedAt = now
	definition.UpdatedAt = now

	if err := w.persistence.SaveDefinition(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return definition, nil
}

// Update stores the changed definition as a new version. Prior versions
// remain untouched for executions pinned to them.
func (w *Workflow) Update(ctx context.Context, id string, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	current, err := w.persistence.DefinitionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := w.validateDefinition(ctx, definition); err != nil {
		return nil, err
	}

	// IsActive is taken from the new definition so an update can also
	// deactivate a workflow and stop new executions of it.
	definition.ID = current.ID
	definition.Version = current.Version + 1
	definition.CreatedAt = current.CreatedAt
	definition.UpdatedAt = time.Now().UTC()

	if err := w.persistence.SaveDefinition(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to save workflow version %d: %w", definition.Version, err)
	}

	return definition, nil
}

func (w *Workflow) Delete(ctx context.Context, id string) error {
	return w.persistence.DeleteDefinition(ctx, id)
}

func (w *Workflow) validateDefinition(ctx context.Context, definition *models.WorkflowDefinition) error {
	const op = "workflow.validate"

	if definition == nil {
		return NewValidationError(op, "workflow_nil", "", ErrWorkflowNil)
	}

	if err := w.validate.Struct(definition); err != nil {
		return NewValidationError(op, "invalid_workflow", err.Error(), ErrWorkflowNameRequired)
	}

	if len(definition.Nodes) == 0 {
		return NewValidationError(op, "nodes_required", "", ErrNodesRequired)
	}

	starts := 0

	for _, node := range definition.Nodes {
		if node.Type == models.NodeTypeStart {
			starts++
		}
	}

	if starts != 1 {
		return NewValidationError(op, "start_node_required",
			fmt.Sprintf("found %d start nodes", starts), ErrStartNodeRequired)
	}

	ends := 0

	for _, node := range definition.Nodes {
		if node.Type == models.NodeTypeEnd {
			ends++
		}
	}

	if ends == 0 {
		return NewValidationError(op, "end_node_required", "", ErrEndNodeRequired)
	}

	if _, err := graph.New(definition, w.evaluator); err != nil {
		return NewValidationError(op, "invalid_graph", err.Error(), ErrInvalidRequest)
	}

	if w.registry != nil {
		if err := w.registry.ValidateDefinition(definition); err != nil {
			return NewValidationError(op, "invalid_node_config", err.Error(), ErrInvalidRequest)
		}
	}

	return nil
}
