package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/testutil"
)

func TestExecute_ExtractsFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "s3://docs/license.pdf", payload["document"])

		_, _ = w.Write([]byte(`{"license_number": "CRM-12345", "expiry": "2027-01-31"}`))
	}))
	defer server.Close()

	handler, err := NewFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	input := protocol.Input{
		Node: testutil.NewNode("extract", models.NodeTypeOCR, testutil.WithData(map[string]any{
			"service_url": server.URL,
			"document":    "{context.license_document}",
			"result_key":  "license_fields",
		})),
		ExecutionID: "exec-1",
		Context: models.NewExecutionContext("exec-1", "wf-1", map[string]any{
			"license_document": "s3://docs/license.pdf",
		}),
	}

	outcome, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeCompleted, outcome.Status)
	require.NotNil(t, outcome.Progress)
	assert.Equal(t, 100, *outcome.Progress)

	fields, ok := outcome.ContextPatch["license_fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "CRM-12345", fields["license_number"])
}

func TestExecute_ServiceErrorFailsStep(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	handler, err := NewFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	input := protocol.Input{
		Node: testutil.NewNode("extract", models.NodeTypeOCR, testutil.WithData(map[string]any{
			"service_url": server.URL,
			"document":    "s3://docs/broken.pdf",
		})),
		ExecutionID: "exec-1",
		Context:     models.NewExecutionContext("exec-1", "wf-1", nil),
	}

	outcome, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailed, outcome.Status)
}
