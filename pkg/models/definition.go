// Package models defines the core domain models for graph-based workflow execution.
package models

import "time"

// NodeType identifies the behavior of a workflow node. The vocabulary is
// open: handlers are registered by type string, so new types can be added
// without touching the engine.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeForm      NodeType = "form"
	NodeTypeApproval  NodeType = "approval"
	NodeTypeEmail     NodeType = "email"
	NodeTypeWebhook   NodeType = "webhook"
	NodeTypeDatabase  NodeType = "database"
	NodeTypeSignature NodeType = "signature"
	NodeTypeOCR       NodeType = "ocr"
	NodeTypeCondition NodeType = "condition"
	NodeTypeJoin      NodeType = "join"
	NodeTypeEnd       NodeType = "end"
	NodeTypeFunction  NodeType = "function"
)

// Node represents a single step definition inside a workflow graph.
// Data carries the type-specific configuration validated against the
// handler's JSON schema.
type Node struct {
	ID        string         `json:"id"   validate:"required"`
	Type      NodeType       `json:"type" validate:"required"`
	Name      string         `json:"name"`
	Data      map[string]any `json:"data"`
	PositionX int            `json:"position_x"`
	PositionY int            `json:"position_y"`
}

// IsPausing reports whether this node type suspends the branch until an
// external decision or submission arrives.
func (n *Node) IsPausing() bool {
	switch n.Type {
	case NodeTypeApproval, NodeTypeForm, NodeTypeSignature:
		return true
	default:
		return false
	}
}

// Edge connects two nodes. An empty Condition means the edge is
// unconditional. Priority breaks ties when several conditional edges are
// eligible at once; nil priority sorts last.
type Edge struct {
	ID        string `json:"id"        validate:"required"`
	Source    string `json:"source"    validate:"required"`
	Target    string `json:"target"    validate:"required"`
	Condition string `json:"condition,omitempty"`
	Priority  *int   `json:"priority,omitempty"`
}

// Conditional reports whether the edge is guarded by an expression.
func (e *Edge) Conditional() bool {
	return e.Condition != ""
}

// PriorityValue returns the effective priority. Edges without an explicit
// priority are treated as lowest.
func (e *Edge) PriorityValue() int {
	if e.Priority == nil {
		return -1
	}

	return *e.Priority
}

// WorkflowDefinition is an immutable workflow template. A specific
// (ID, Version) pair is what executions pin, so later edits never affect
// in-flight work.
type WorkflowDefinition struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"        validate:"required,min=3"`
	Description string    `json:"description"`
	Version     int       `json:"version"`
	Nodes       []*Node   `json:"nodes"`
	Edges       []*Edge   `json:"edges"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NodeByID returns the node with the given id, if present.
func (w *WorkflowDefinition) NodeByID(id string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// StartNode returns the definition's start node, if present.
func (w *WorkflowDefinition) StartNode() (*Node, bool) {
	for _, node := range w.Nodes {
		if node.Type == NodeTypeStart {
			return node, true
		}
	}

	return nil, false
}
