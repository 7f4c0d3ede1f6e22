package condition

import (
	"context"
	"testing"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conditionJob(expr string) *models.WorkerJob {
	return &models.WorkerJob{
		ID:          "step-1",
		ExecutionID: "exec-1",
		Node: models.Node{
			ID:     "check",
			Type:   models.NodeTypeCondition,
			Config: map[string]any{"expression": expr},
		},
		Input: map[string]any{"count": float64(5)},
		PreviousResults: map[string]any{
			"fetch": map[string]any{"status": float64(200)},
		},
		Attempt: 1,
	}
}

func TestExecute_TrueLiteral(t *testing.T) {
	result, err := NewHandler().Execute(context.Background(), conditionJob("1"))

	require.NoError(t, err)
	assert.Equal(t, true, result["result"])
}

func TestExecute_AgainstPreviousResults(t *testing.T) {
	result, err := NewHandler().Execute(context.Background(), conditionJob("$fetch.status == 200"))

	require.NoError(t, err)
	assert.Equal(t, true, result["result"])
}

func TestExecute_AgainstInput(t *testing.T) {
	result, err := NewHandler().Execute(context.Background(), conditionJob("$input.count > 3"))

	require.NoError(t, err)
	assert.Equal(t, true, result["result"])
}

func TestExecute_MissingExpressionIsFalse(t *testing.T) {
	job := conditionJob("")
	delete(job.Node.Config, "expression")

	result, err := NewHandler().Execute(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, false, result["result"])
}
