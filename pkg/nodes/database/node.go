package database

import (
	"context"
	"fmt"

	"github.com/credenflow/credenflow/pkg/collaborators"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/template"
)

type Node struct {
	rows collaborators.RowStore
}

func (n *Node) Execute(ctx context.Context, input protocol.Input) (*models.Outcome, error) {
	operation, _ := input.Node.Data["operation"].(string)

	table, ok := input.Node.Data["table"].(string)
	if !ok || table == "" {
		return models.Failed("missing required field 'table'"), nil
	}

	snapshot := input.Context.Snapshot()

	data := renderedMap(input.Node.Data, "data", snapshot)
	where := renderedMap(input.Node.Data, "where", snapshot)

	var err error

	switch operation {
	case OperationInsert:
		if len(data) == 0 {
			return models.Failed("insert requires a non-empty 'data' object"), nil
		}

		err = n.rows.Insert(ctx, table, data)
	case OperationUpdate:
		if len(data) == 0 || len(where) == 0 {
			return models.Failed("update requires 'data' and 'where' objects"), nil
		}

		err = n.rows.Update(ctx, table, data, where)
	case OperationDelete:
		if len(where) == 0 {
			return models.Failed("delete requires a 'where' object"), nil
		}

		err = n.rows.Delete(ctx, table, where)
	default:
		return models.Failed(fmt.Sprintf("unknown operation '%s'", operation)), nil
	}

	if err != nil {
		return models.Failed(fmt.Sprintf("database %s on %s: %v", operation, table, err)), nil
	}

	return models.Completed(map[string]any{"operation": operation, "table": table}, nil), nil
}

func renderedMap(config map[string]any, key string, snapshot map[string]any) map[string]any {
	raw, ok := config[key].(map[string]any)
	if !ok {
		return nil
	}

	return template.RenderMap(raw, snapshot)
}
