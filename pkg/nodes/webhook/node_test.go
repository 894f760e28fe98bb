package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/testutil"
)

func newInput(data map[string]any, seed map[string]any) protocol.Input {
	return protocol.Input{
		Node:        testutil.NewNode("verify", models.NodeTypeWebhook, testutil.WithData(data)),
		ExecutionID: "exec-1",
		Context:     models.NewExecutionContext("exec-1", "wf-1", seed),
	}
}

func TestExecute_SuccessStoresResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"verified": true}`))
	}))
	defer server.Close()

	handler, err := NewFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	input := newInput(map[string]any{
		"url":        server.URL,
		"method":     "POST",
		"body":       `{"provider": "{context.provider_id}"}`,
		"result_key": "license_check",
	}, map[string]any{"provider_id": "prov-9"})

	outcome, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeCompleted, outcome.Status)
	assert.Equal(t, 200, outcome.Output["status_code"])

	patched, ok := outcome.ContextPatch["license_check"].(map[string]any)
	require.True(t, ok)

	jsonBody, ok := patched["json"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, jsonBody["verified"])
}

func TestExecute_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	handler, err := NewFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	input := newInput(map[string]any{
		"url": server.URL,
		"retries": map[string]any{
			"attempts": float64(3),
			"delay":    float64(0),
		},
	}, nil)

	outcome, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeCompleted, outcome.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecute_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	handler, err := NewFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	input := newInput(map[string]any{
		"url": server.URL,
		"retries": map[string]any{
			"attempts": float64(5),
			"delay":    float64(0),
		},
	}, nil)

	outcome, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailed, outcome.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecute_MissingURL(t *testing.T) {
	handler, err := NewFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	outcome, err := handler.Execute(context.Background(), newInput(map[string]any{}, nil))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailed, outcome.Status)
}
