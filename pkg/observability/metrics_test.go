package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ExecutionStarted()
	m.ExecutionStarted()
	m.ExecutionCompleted()
	m.ExecutionFailed()
	m.JobPublished()
	m.PublishRejected()
	m.Retry()
	m.DLQEntry()

	snapshot := m.Snapshot()
	assert.Equal(t, int64(2), snapshot.ExecutionsStarted)
	assert.Equal(t, int64(1), snapshot.ExecutionsCompleted)
	assert.Equal(t, int64(1), snapshot.ExecutionsFailed)
	assert.Equal(t, int64(1), snapshot.JobsPublished)
	assert.Equal(t, int64(1), snapshot.PublishRejected)
	assert.Equal(t, int64(1), snapshot.Retries)
	assert.Equal(t, int64(1), snapshot.DLQEntries)
}

// Step metrics are keyed by node type, not step ID.
func TestMetrics_StepsKeyedByNodeType(t *testing.T) {
	m := NewMetrics()

	m.StepCompleted("action", 10)
	m.StepCompleted("action", 15)
	m.StepFailed("action", 5)
	m.StepSkipped("condition")

	snapshot := m.Snapshot()
	assert.Len(t, snapshot.Steps, 2)
	assert.Equal(t, int64(2), snapshot.Steps["action"].Completed)
	assert.Equal(t, int64(1), snapshot.Steps["action"].Failed)
	assert.Equal(t, int64(30), snapshot.Steps["action"].TotalDurationMs)
	assert.Equal(t, int64(1), snapshot.Steps["condition"].Skipped)
}

func TestMetrics_SnapshotIsACopy(t *testing.T) {
	m := NewMetrics()
	m.StepCompleted("action", 1)

	snapshot := m.Snapshot()
	snapshot.Steps["action"] = StepMetrics{Completed: 99}

	assert.Equal(t, int64(1), m.Snapshot().Steps["action"].Completed)
}
