package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyFromConfig_Defaults(t *testing.T) {
	policy := RetryPolicyFromConfig(nil)

	assert.Equal(t, 0, policy.MaxRetries)
	assert.Equal(t, DefaultBackoffMs, policy.BackoffMs)
	assert.Equal(t, DefaultBackoffMultiplier, policy.BackoffMultiplier)
}

func TestRetryPolicyFromConfig_JSONNumbers(t *testing.T) {
	policy := RetryPolicyFromConfig(map[string]any{
		"retry": map[string]any{
			"maxRetries":        float64(3),
			"backoffMs":         float64(250),
			"backoffMultiplier": 1.5,
		},
	})

	assert.Equal(t, 3, policy.MaxRetries)
	assert.Equal(t, 250, policy.BackoffMs)
	assert.Equal(t, 1.5, policy.BackoffMultiplier)
}

func TestRetryPolicyFromConfig_IgnoresMalformed(t *testing.T) {
	policy := RetryPolicyFromConfig(map[string]any{
		"retry": map[string]any{
			"maxRetries": "many",
			"backoffMs":  float64(-5),
		},
	})

	assert.Equal(t, 0, policy.MaxRetries)
	assert.Equal(t, DefaultBackoffMs, policy.BackoffMs)
}

func TestWorkflowDefinition_Navigation(t *testing.T) {
	def := WorkflowDefinition{
		Nodes: []Node{
			{ID: "start", Type: NodeTypeStart},
			{ID: "a", Type: NodeTypeAction},
			{ID: "end", Type: NodeTypeEnd},
		},
		Edges: []Edge{
			{ID: "e1", Source: "start", Target: "a"},
			{ID: "e2", Source: "a", Target: "end"},
		},
	}

	node, ok := def.NodeByID("a")
	assert.True(t, ok)
	assert.Equal(t, NodeTypeAction, node.Type)

	_, ok = def.NodeByID("ghost")
	assert.False(t, ok)

	assert.Len(t, def.OutgoingEdges("start"), 1)
	assert.Len(t, def.IncomingEdges("end"), 1)
	assert.Empty(t, def.OutgoingEdges("end"))

	initial := def.InitialNodes()
	assert.Len(t, initial, 1)
	assert.Equal(t, "start", initial[0].ID)
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, ExecutionStatusCompleted.Terminal())
	assert.True(t, ExecutionStatusFailed.Terminal())
	assert.True(t, ExecutionStatusCancelled.Terminal())
	assert.False(t, ExecutionStatusRunning.Terminal())

	assert.True(t, StepStatusCompleted.Settled())
	assert.True(t, StepStatusSkipped.Settled())
	assert.False(t, StepStatusPending.Settled())
	assert.False(t, StepStatusFailed.Settled())
}
