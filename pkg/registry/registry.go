// Package registry holds the node handler factories and validates node
// configuration against each factory's JSON schema.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[models.NodeType]protocol.HandlerFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		factories: make(map[models.NodeType]protocol.HandlerFactory),
	}
}

func (r *Registry) Register(factory protocol.HandlerFactory) {
	r.factories[factory.Type()] = factory
}

func (r *Registry) Create(nodeType models.NodeType, deps protocol.Dependencies) (protocol.Handler, error) {
	factory, ok := r.factories[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", nodeType)
	}

	return factory.Create(deps)
}

func (r *Registry) Registered(nodeType models.NodeType) bool {
	_, ok := r.factories[nodeType]

	return ok
}

func (r *Registry) Types() []models.NodeType {
	types := make([]models.NodeType, 0, len(r.factories))
	for nodeType := range r.factories {
		types = append(types, nodeType)
	}

	return types
}

// ValidateNode checks a node's config against its factory schema.
func (r *Registry) ValidateNode(node *models.Node) error {
	factory, ok := r.factories[node.Type]
	if !ok {
		return fmt.Errorf("node '%s': type '%s' not registered", node.ID, node.Type)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	data := node.Data
	if data == nil {
		data = make(map[string]any)
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("node '%s': schema validation: %w", node.ID, err)
	}

	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}

		return fmt.Errorf("node '%s': invalid config: %s", node.ID, strings.Join(reasons, "; "))
	}

	return nil
}

// ValidateDefinition validates every node of a workflow definition.
func (r *Registry) ValidateDefinition(definition *models.WorkflowDefinition) error {
	for _, node := range definition.Nodes {
		if err := r.ValidateNode(node); err != nil {
			return err
		}
	}

	return nil
}
