package action

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actionJob(config map[string]any) *models.WorkerJob {
	return &models.WorkerJob{
		ID:          "step-1",
		ExecutionID: "exec-1",
		Node: models.Node{
			ID:     "act",
			Type:   models.NodeTypeAction,
			Label:  "Act",
			Config: config,
		},
		Attempt: 1,
	}
}

func TestExecute_DefaultSimulation(t *testing.T) {
	result, err := NewHandler().Execute(context.Background(), actionJob(nil))

	require.NoError(t, err)
	assert.Equal(t, "default", result["actionType"])
	assert.Equal(t, "act", result["nodeId"])
}

func TestExecute_EmailSimulation(t *testing.T) {
	result, err := NewHandler().Execute(context.Background(), actionJob(map[string]any{
		"actionType": "email",
		"to":         "ops@example.com",
		"subject":    "ping",
	}))

	require.NoError(t, err)
	assert.Equal(t, true, result["sent"])
	assert.Equal(t, "ops@example.com", result["to"])
}

func TestExecute_HTTPJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "yes", r.Header.Get("X-Custom"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "abc"}`))
	}))
	defer server.Close()

	result, err := NewHandler().Execute(context.Background(), actionJob(map[string]any{
		"actionType": "http",
		"url":        server.URL,
		"method":     "post",
		"headers":    map[string]any{"X-Custom": "yes"},
		"body":       `{"name": "x"}`,
	}))

	require.NoError(t, err)
	assert.Equal(t, float64(201), result["status"])
	assert.Equal(t, map[string]any{"id": "abc"}, result["body"])
}

func TestExecute_HTTPTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	}))
	defer server.Close()

	result, err := NewHandler().Execute(context.Background(), actionJob(map[string]any{
		"actionType": "http",
		"url":        server.URL,
	}))

	require.NoError(t, err)
	assert.Equal(t, float64(200), result["status"])
	assert.Equal(t, "pong", result["body"])
}

func TestExecute_HTTPTransportFailureIsRetryable(t *testing.T) {
	_, err := NewHandler().Execute(context.Background(), actionJob(map[string]any{
		"actionType": "http",
		"url":        "http://127.0.0.1:1/unreachable",
	}))

	require.Error(t, err)
	assert.True(t, protocol.IsRetryable(err))
}

func TestExecute_MissingURLNotRetryable(t *testing.T) {
	_, err := NewHandler().Execute(context.Background(), actionJob(map[string]any{"actionType": "http"}))

	require.Error(t, err)
	assert.False(t, protocol.IsRetryable(err))
}

func TestExecute_UnknownActionType(t *testing.T) {
	_, err := NewHandler().Execute(context.Background(), actionJob(map[string]any{"actionType": "carrier-pigeon"}))

	require.Error(t, err)
	assert.False(t, protocol.IsRetryable(err))
}
