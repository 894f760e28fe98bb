package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credenflow/credenflow/pkg/log"
	"github.com/credenflow/credenflow/pkg/persistence/file"
	"github.com/credenflow/credenflow/pkg/testutil"
)

func newWorkflowService(t *testing.T) *Workflow {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	log.Setup("error")

	return NewWorkflow(store, nil)
}

func TestCreate_AssignsVersionOne(t *testing.T) {
	service := newWorkflowService(t)

	definition := testutil.LinearDefinition("start", "screen", "end")
	definition.Version = 0

	created, err := service.Create(context.Background(), definition)
	require.NoError(t, err)

	assert.Equal(t, 1, created.Version)
	assert.True(t, created.IsActive)
	assert.NotEmpty(t, created.ID)
}

func TestCreate_RejectsMissingStartNode(t *testing.T) {
	service := newWorkflowService(t)

	definition := testutil.LinearDefinition("start", "screen", "end")
	definition.Nodes[0].Type = testutil.NodeTypeTask

	_, err := service.Create(context.Background(), definition)

	assert.ErrorIs(t, err, ErrStartNodeRequired)
	assert.True(t, IsValidationError(err))
}

func TestCreate_RejectsEmptyNodes(t *testing.T) {
	service := newWorkflowService(t)

	definition := testutil.NewDefinition("empty", nil, nil)

	_, err := service.Create(context.Background(), definition)

	assert.ErrorIs(t, err, ErrNodesRequired)
}

func TestCreate_RejectsInvalidGraph(t *testing.T) {
	service := newWorkflowService(t)

	definition := testutil.LinearDefinition("start", "screen", "end")
	definition.Edges[1].Target = "missing"

	_, err := service.Create(context.Background(), definition)

	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUpdate_CreatesNewVersion(t *testing.T) {
	service := newWorkflowService(t)

	created, err := service.Create(context.Background(), testutil.LinearDefinition("start", "screen", "end"))
	require.NoError(t, err)

	updated := testutil.LinearDefinition("start", "screen", "verify", "end")
	updated.Name = "accreditation v2"

	result, err := service.Update(context.Background(), created.ID, updated)
	require.NoError(t, err)

	assert.Equal(t, created.ID, result.ID)
	assert.Equal(t, 2, result.Version)

	// The original version is still retrievable for pinned executions.
	v1, err := service.GetVersion(context.Background(), created.ID, 1)
	require.NoError(t, err)
	assert.Len(t, v1.Nodes, 3)

	latest, err := service.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Len(t, latest.Nodes, 4)
}

func TestGet_NotFound(t *testing.T) {
	service := newWorkflowService(t)

	_, err := service.Get(context.Background(), "nope")

	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflowName_Validation(t *testing.T) {
	service := newWorkflowService(t)

	definition := testutil.LinearDefinition("start", "screen", "end")
	definition.Name = "ab"

	_, err := service.Create(context.Background(), definition)

	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, "invalid_workflow", serviceErr.Code)
}
