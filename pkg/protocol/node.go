// Package protocol defines the contracts between the execution engine and
// pluggable node handlers.
package protocol

import (
	"context"
	"log/slog"

	"github.com/credenflow/credenflow/pkg/collaborators"
	"github.com/credenflow/credenflow/pkg/models"
)

// Input carries everything a handler may need for one node execution.
// StepExecutionID doubles as the resume token for pausing handlers.
type Input struct {
	Node            *models.Node
	StepExecutionID string
	ExecutionID     string
	Context         *models.ExecutionContext
}

// Handler executes one node. A handler returns an Outcome for expected
// results, including failures that should be recorded on the step; an error
// return is reserved for infrastructure problems (store unreachable,
// marshaling bugs) and also fails the step.
type Handler interface {
	Execute(ctx context.Context, input Input) (*models.Outcome, error)
}

// HandlerFactory creates handler instances and describes the node type.
// Adding a node type to the system means adding a factory, not editing the
// engine.
type HandlerFactory interface {
	// Create builds the handler with its collaborators wired in.
	Create(deps Dependencies) (Handler, error)

	// Type returns the node type string this factory serves.
	Type() models.NodeType

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns a description of what this node does.
	Description() string

	// Schema returns the JSON schema for the node's Data configuration.
	Schema() map[string]any
}

// Dependencies contains the external collaborators handlers may use.
// Unused fields may be nil; each factory validates what it needs.
type Dependencies struct {
	Logger   *slog.Logger
	Mailer   collaborators.Mailer
	Rows     collaborators.RowStore
	Notifier collaborators.ApprovalNotifier
}
