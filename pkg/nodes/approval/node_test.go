package approval

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credenflow/credenflow/pkg/collaborators"
	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/testutil"
)

func TestExecute_PausesWithResumeToken(t *testing.T) {
	notifier := collaborators.NewLogNotifier(slog.Default())

	handler, err := NewFactory().Create(protocol.Dependencies{Notifier: notifier})
	require.NoError(t, err)

	input := protocol.Input{
		Node: testutil.NewNode("approve", models.NodeTypeApproval, testutil.WithData(map[string]any{
			"approver_group": "medical-board",
			"summary":        "Review accreditation for {context.provider_name}",
		})),
		StepExecutionID: "step-77",
		ExecutionID:     "exec-1",
		Context: models.NewExecutionContext("exec-1", "wf-1", map[string]any{
			"provider_name": "Dr. Ibrahim",
		}),
	}

	outcome, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomePaused, outcome.Status)
	assert.Equal(t, "step-77", outcome.ResumeToken)
	assert.Equal(t, "medical-board", outcome.Output["approver_group"])

	require.Len(t, notifier.Requests, 1)
	assert.Equal(t, "step-77", notifier.Requests[0].StepExecutionID)
	assert.Equal(t, "Review accreditation for Dr. Ibrahim", notifier.Requests[0].Summary)
}

func TestExecute_PausesWithoutNotifier(t *testing.T) {
	handler, err := NewFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	input := protocol.Input{
		Node:            testutil.NewNode("approve", models.NodeTypeApproval),
		StepExecutionID: "step-1",
		ExecutionID:     "exec-1",
		Context:         models.NewExecutionContext("exec-1", "wf-1", nil),
	}

	outcome, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomePaused, outcome.Status)
	assert.Equal(t, "step-1", outcome.ResumeToken)
}
