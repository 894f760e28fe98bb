// Package graph provides the validated in-memory representation of a
// workflow definition used for traversal by the execution engine.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/credenflow/credenflow/pkg/expr"
	"github.com/credenflow/credenflow/pkg/models"
)

// ValidationError indicates malformed graph topology. It is surfaced to the
// caller synchronously, before any execution record is created.
type ValidationError struct {
	Reason string
	NodeID string
	EdgeID string
}

func (e *ValidationError) Error() string {
	switch {
	case e.EdgeID != "":
		return fmt.Sprintf("invalid workflow graph: %s (edge %s)", e.Reason, e.EdgeID)
	case e.NodeID != "":
		return fmt.Sprintf("invalid workflow graph: %s (node %s)", e.Reason, e.NodeID)
	default:
		return "invalid workflow graph: " + e.Reason
	}
}

// ErrConditionNotEvaluable wraps condition evaluation failures so callers
// can distinguish them from topology errors.
var ErrConditionNotEvaluable = errors.New("edge condition not evaluable")

// Graph is an immutable traversal view over a workflow definition.
type Graph struct {
	definition *models.WorkflowDefinition
	outgoing   map[string][]*models.Edge
	incoming   map[string][]*models.Edge
	evaluator  expr.Evaluator
}

// New validates the definition and builds its traversal indexes. It fails
// with a *ValidationError when an edge references a missing node, when the
// definition has no start node, when a non-end node has no outgoing edge,
// or when a non-start node has no incoming edge.
func New(definition *models.WorkflowDefinition, evaluator expr.Evaluator) (*Graph, error) {
	if _, ok := definition.StartNode(); !ok {
		return nil, &ValidationError{Reason: "no start node"}
	}

	g := &Graph{
		definition: definition,
		outgoing:   make(map[string][]*models.Edge),
		incoming:   make(map[string][]*models.Edge),
		evaluator:  evaluator,
	}

	for _, edge := range definition.Edges {
		if _, ok := definition.NodeByID(edge.Source); !ok {
			return nil, &ValidationError{Reason: "edge source node does not exist", EdgeID: edge.ID}
		}

		if _, ok := definition.NodeByID(edge.Target); !ok {
			return nil, &ValidationError{Reason: "edge target node does not exist", EdgeID: edge.ID}
		}

		g.outgoing[edge.Source] = append(g.outgoing[edge.Source], edge)
		g.incoming[edge.Target] = append(g.incoming[edge.Target], edge)
	}

	for _, node := range definition.Nodes {
		if node.Type != models.NodeTypeEnd && len(g.outgoing[node.ID]) == 0 {
			return nil, &ValidationError{Reason: "non-end node has no outgoing edges", NodeID: node.ID}
		}

		if node.Type != models.NodeTypeStart && len(g.incoming[node.ID]) == 0 {
			return nil, &ValidationError{Reason: "non-start node has no incoming edges", NodeID: node.ID}
		}
	}

	// Stable priority order for eligibility resolution.
	for _, edges := range g.outgoing {
		sort.SliceStable(edges, func(i, j int) bool {
			return edges[i].PriorityValue() > edges[j].PriorityValue()
		})
	}

	return g, nil
}

// Definition returns the underlying workflow definition.
func (g *Graph) Definition() *models.WorkflowDefinition {
	return g.definition
}

// OutgoingEdges returns the edges leaving nodeID, ordered by descending
// priority.
func (g *Graph) OutgoingEdges(nodeID string) []*models.Edge {
	return g.outgoing[nodeID]
}

// IncomingEdges returns the edges targeting nodeID.
func (g *Graph) IncomingEdges(nodeID string) []*models.Edge {
	return g.incoming[nodeID]
}

// EligibleEdges evaluates each outgoing edge of nodeID against the context
// snapshot and returns those whose condition holds, preserving priority
// order. Unconditional edges are always eligible; a multi-edge fan-out with
// no conditions therefore yields every edge, which is how parallel branches
// are expressed.
func (g *Graph) EligibleEdges(nodeID string, context map[string]any) ([]*models.Edge, error) {
	var eligible []*models.Edge

	for _, edge := range g.outgoing[nodeID] {
		if !edge.Conditional() {
			eligible = append(eligible, edge)

			continue
		}

		ok, err := g.evaluator.Evaluate(edge.Condition, context)
		if err != nil {
			return nil, fmt.Errorf("%w: edge %s: %w", ErrConditionNotEvaluable, edge.ID, err)
		}

		if ok {
			eligible = append(eligible, edge)
		}
	}

	return eligible, nil
}
