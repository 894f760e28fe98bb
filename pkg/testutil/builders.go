// Package testutil provides test data builders for workflow definitions.
package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/credenflow/credenflow/pkg/models"
)

// NodeTypeTask is a generic runnable node type used by tests. Engine tests
// register a stub handler under it.
const NodeTypeTask = models.NodeType("task")

// NewNode creates a node with optional overrides.
func NewNode(id string, nodeType models.NodeType, overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:   id,
		Type: nodeType,
		Name: id,
		Data: map[string]any{},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithData sets the node's type-specific configuration.
func WithData(data map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Data = data
	}
}

// NewEdge creates an unconditional edge.
func NewEdge(source, target string) *models.Edge {
	return &models.Edge{
		ID:     fmt.Sprintf("%s->%s", source, target),
		Source: source,
		Target: target,
	}
}

// NewConditionalEdge creates an edge guarded by the given expression.
func NewConditionalEdge(source, target, condition string) *models.Edge {
	edge := NewEdge(source, target)
	edge.Condition = condition

	return edge
}

// NewDefinition wraps nodes and edges into an active v1 definition.
func NewDefinition(name string, nodes []*models.Node, edges []*models.Edge) *models.WorkflowDefinition {
	now := time.Now().UTC()

	return &models.WorkflowDefinition{
		ID:        uuid.New().String(),
		Name:      name,
		Version:   1,
		Nodes:     nodes,
		Edges:     edges,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LinearDefinition builds start -> middle... -> end with the given node
// ids. The first id becomes the start node, the last the end node, and
// everything between a generic task node.
func LinearDefinition(ids ...string) *models.WorkflowDefinition {
	nodes := make([]*models.Node, 0, len(ids))
	edges := make([]*models.Edge, 0, len(ids)-1)

	for i, id := range ids {
		nodeType := NodeTypeTask
		if i == 0 {
			nodeType = models.NodeTypeStart
		} else if i == len(ids)-1 {
			nodeType = models.NodeTypeEnd
		}

		nodes = append(nodes, NewNode(id, nodeType))

		if i > 0 {
			edges = append(edges, NewEdge(ids[i-1], id))
		}
	}

	return NewDefinition("linear", nodes, edges)
}

// BranchingDefinition builds an exclusive branch:
//
//	start -> decide -> approve -> end
//	              \--> reject  -> end
//
// with the two decide edges guarded by the given conditions.
func BranchingDefinition(approveCondition, rejectCondition string) *models.WorkflowDefinition {
	nodes := []*models.Node{
		NewNode("start", models.NodeTypeStart),
		NewNode("decide", models.NodeTypeCondition),
		NewNode("approve", NodeTypeTask),
		NewNode("reject", NodeTypeTask),
		NewNode("end", models.NodeTypeEnd),
	}

	edges := []*models.Edge{
		NewEdge("start", "decide"),
		NewConditionalEdge("decide", "approve", approveCondition),
		NewConditionalEdge("decide", "reject", rejectCondition),
		NewEdge("approve", "end"),
		NewEdge("reject", "end"),
	}

	return NewDefinition("branching", nodes, edges)
}

// FanOutDefinition builds n parallel task branches from start merged at a
// wait_all join before end.
func FanOutDefinition(n int) *models.WorkflowDefinition {
	nodes := []*models.Node{
		NewNode("start", models.NodeTypeStart),
		NewNode("join", models.NodeTypeJoin, WithData(map[string]any{
			"mode": "wait_all",
		})),
		NewNode("end", models.NodeTypeEnd),
	}

	edges := []*models.Edge{NewEdge("join", "end")}

	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("branch%d", i)
		nodes = append(nodes, NewNode(id, NodeTypeTask))
		edges = append(edges, NewEdge("start", id), NewEdge(id, "join"))
	}

	return NewDefinition("fanout", nodes, edges)
}

// ApprovalDefinition builds start -> screen -> approve -> notify -> end
// where approve is a human approval node.
func ApprovalDefinition() *models.WorkflowDefinition {
	nodes := []*models.Node{
		NewNode("start", models.NodeTypeStart),
		NewNode("screen", NodeTypeTask),
		NewNode("approve", models.NodeTypeApproval, WithData(map[string]any{
			"approver_group": "credentialing-reviewers",
		})),
		NewNode("notify", NodeTypeTask),
		NewNode("end", models.NodeTypeEnd),
	}

	edges := []*models.Edge{
		NewEdge("start", "screen"),
		NewEdge("screen", "approve"),
		NewEdge("approve", "notify"),
		NewEdge("notify", "end"),
	}

	return NewDefinition("approval", nodes, edges)
}

// NewExecution creates a minimal running execution for store tests.
func NewExecution(workflowID string) *models.WorkflowExecution {
	return &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Status:     models.ExecutionStatusRunning,
		Context:    map[string]any{},
		StartedAt:  time.Now().UTC(),
	}
}
