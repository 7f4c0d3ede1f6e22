package heartbeat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_RegisterDeregister(t *testing.T) {
	m := NewMonitor(time.Second)

	m.Register("job-1", "exec-1", "A")
	m.Register("job-2", "exec-1", "B")

	assert.Equal(t, 2, m.Status().Active)

	m.Deregister("job-1")
	assert.Equal(t, 1, m.Status().Active)
}

func TestMonitor_StallDetection(t *testing.T) {
	m := NewMonitor(30 * time.Second)

	base := time.Now()
	m.now = func() time.Time { return base }

	m.Register("slow", "exec-1", "Slow")
	m.Register("fresh", "exec-1", "Fresh")

	// Advance the clock past the threshold; only the job that heartbeats
	// stays healthy.
	m.now = func() time.Time { return base.Add(31 * time.Second) }
	m.Heartbeat("fresh")

	m.now = func() time.Time { return base.Add(45 * time.Second) }

	status := m.Status()
	assert.Equal(t, 2, status.Active)
	require.Len(t, status.Stalled, 1)
	assert.Equal(t, "slow", status.Stalled[0].JobID)
}

func TestMonitor_HeartbeatRefreshes(t *testing.T) {
	m := NewMonitor(30 * time.Second)

	base := time.Now()
	m.now = func() time.Time { return base }
	m.Register("job-1", "exec-1", "A")

	m.now = func() time.Time { return base.Add(29 * time.Second) }
	m.Heartbeat("job-1")

	m.now = func() time.Time { return base.Add(50 * time.Second) }
	assert.Empty(t, m.Status().Stalled)
}

func TestMonitor_HeartbeatUnknownJobIsNoop(t *testing.T) {
	m := NewMonitor(time.Second)

	m.Heartbeat("ghost")

	assert.Equal(t, 0, m.Status().Active)
}
