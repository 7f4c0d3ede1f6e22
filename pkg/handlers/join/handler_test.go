package join

import (
	"context"
	"testing"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_MergesUpstreamResults(t *testing.T) {
	job := &models.WorkerJob{
		ID:   "step-1",
		Node: models.Node{ID: "jn", Type: models.NodeTypeJoin},
		UpstreamResults: map[string]any{
			"a": map[string]any{"from": "a"},
			"b": map[string]any{"from": "b"},
		},
	}

	result, err := NewHandler().Execute(context.Background(), job)
	require.NoError(t, err)

	merged, ok := result["mergedResults"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, merged, "a")
	assert.Contains(t, merged, "b")
	assert.Equal(t, 2, result["branchCount"])
}

func TestExecute_NoUpstreamResults(t *testing.T) {
	job := &models.WorkerJob{
		ID:   "step-1",
		Node: models.Node{ID: "jn", Type: models.NodeTypeJoin},
	}

	result, err := NewHandler().Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 0, result["branchCount"])
}
