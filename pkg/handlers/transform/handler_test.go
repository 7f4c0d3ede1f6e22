package transform

import (
	"context"
	"testing"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transformJob(config map[string]any) *models.WorkerJob {
	return &models.WorkerJob{
		ID: "step-1",
		Node: models.Node{
			ID:     "shape",
			Type:   models.NodeTypeTransform,
			Config: config,
		},
		Input: map[string]any{
			"name":  "ada",
			"email": "ada@example.com",
			"age":   float64(36),
		},
		PreviousResults: map[string]any{
			"fetch": map[string]any{"status": float64(200)},
		},
	}
}

func TestExecute_Mappings(t *testing.T) {
	result, err := NewHandler().Execute(context.Background(), transformJob(map[string]any{
		"mappings": map[string]any{
			"userName":    "$input.name",
			"fetchStatus": "$fetch.status",
			"constant":    float64(7),
		},
	}))

	require.NoError(t, err)
	assert.Equal(t, "ada", result["userName"])
	assert.Equal(t, float64(200), result["fetchStatus"])
	assert.Equal(t, float64(7), result["constant"])
}

func TestExecute_Pick(t *testing.T) {
	result, err := NewHandler().Execute(context.Background(), transformJob(map[string]any{
		"pick": []any{"name", "missing"},
	}))

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "ada"}, result)
}

func TestExecute_Rename(t *testing.T) {
	result, err := NewHandler().Execute(context.Background(), transformJob(map[string]any{
		"pick":   []any{"name"},
		"rename": map[string]any{"name": "fullName"},
	}))

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"fullName": "ada"}, result)
}

func TestExecute_Template(t *testing.T) {
	result, err := NewHandler().Execute(context.Background(), transformJob(map[string]any{
		"template": map[string]any{
			"greeting": "hello {{$input.name}}, status {{$fetch.status}}",
		},
	}))

	require.NoError(t, err)
	assert.Equal(t, "hello ada, status 200", result["greeting"])
}

func TestExecute_StagesApplyInOrder(t *testing.T) {
	result, err := NewHandler().Execute(context.Background(), transformJob(map[string]any{
		"mappings": map[string]any{"who": "$input.name"},
		"pick":     []any{"age"},
		"rename":   map[string]any{"age": "years"},
		"template": map[string]any{"summary": "{{$input.name}} is {{$input.age}}"},
	}))

	require.NoError(t, err)
	assert.Equal(t, "ada", result["who"])
	assert.Equal(t, float64(36), result["years"])
	assert.NotContains(t, result, "age")
	assert.Equal(t, "ada is 36", result["summary"])
}
