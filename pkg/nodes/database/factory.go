// Package database provides the persistence node that writes workflow
// data to application tables.
package database

import (
	"errors"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
)

const (
	OperationInsert = "insert"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

type Factory struct{}

func NewFactory() protocol.HandlerFactory {
	return &Factory{}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Handler, error) {
	if deps.Rows == nil {
		return nil, errors.New("database node requires a row store")
	}

	return &Node{rows: deps.Rows}, nil
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeDatabase
}

func (f *Factory) Name() string {
	return "Database"
}

func (f *Factory) Description() string {
	return "Inserts, updates or deletes a row in an application table using values from the execution context."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []string{OperationInsert, OperationUpdate, OperationDelete},
			},
			"table": map[string]any{
				"type": "string",
			},
			"data": map[string]any{
				"type":        "object",
				"description": "Column values. String values support {context.key} placeholders.",
			},
			"where": map[string]any{
				"type":        "object",
				"description": "Match columns for update and delete.",
			},
		},
		"required": []string{"operation", "table"},
	}
}
