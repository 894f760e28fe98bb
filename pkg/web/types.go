// Package web provides HTTP handlers and REST API endpoints for
// workflow definitions and executions.
package web

import "github.com/credenflow/credenflow/pkg/models"

// CreateWorkflowRequest is the request body for creating a workflow
// definition. The full graph is supplied up front.
type CreateWorkflowRequest struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Nodes       []*models.Node `json:"nodes"       validate:"required,min=1"`
	Edges       []*models.Edge `json:"edges"`
}

// UpdateWorkflowRequest is the request body for updating a workflow.
// Updates create a new definition version.
type UpdateWorkflowRequest struct {
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Nodes       []*models.Node `json:"nodes"       validate:"required,min=1"`
	Edges       []*models.Edge `json:"edges"`
	IsActive    *bool          `json:"is_active,omitempty"`
}

// ExecuteWorkflowRequest carries the initial input for a new execution.
type ExecuteWorkflowRequest struct {
	Input map[string]any `json:"input"`
}

func (r *CreateWorkflowRequest) toDefinition() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Nodes:       r.Nodes,
		Edges:       r.Edges,
	}
}

func (r *UpdateWorkflowRequest) toDefinition() *models.WorkflowDefinition {
	definition := &models.WorkflowDefinition{
		Name:        r.Name,
		Description: r.Description,
		Nodes:       r.Nodes,
		Edges:       r.Edges,
		IsActive:    true,
	}

	if r.IsActive != nil {
		definition.IsActive = *r.IsActive
	}

	return definition
}
