// Package heartbeat tracks in-flight jobs and surfaces stalls. Detection is
// observational: nothing is killed automatically.
package heartbeat

import (
	"sync"
	"time"
)

const DefaultStallThreshold = 30 * time.Second

// InflightJob is one tracked dispatch.
type InflightJob struct {
	JobID         string    `json:"job_id"`
	ExecutionID   string    `json:"execution_id"`
	NodeLabel     string    `json:"node_label"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Status is a point-in-time report.
type Status struct {
	Active  int           `json:"active"`
	Stalled []InflightJob `json:"stalled,omitempty"`
}

type Monitor struct {
	mu             sync.Mutex
	inflight       map[string]*InflightJob
	stallThreshold time.Duration
	now            func() time.Time
}

func NewMonitor(stallThreshold time.Duration) *Monitor {
	if stallThreshold <= 0 {
		stallThreshold = DefaultStallThreshold
	}

	return &Monitor{
		inflight:       make(map[string]*InflightJob),
		stallThreshold: stallThreshold,
		now:            time.Now,
	}
}

func (m *Monitor) Register(jobID, executionID, nodeLabel string) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.inflight[jobID] = &InflightJob{
		JobID:         jobID,
		ExecutionID:   executionID,
		NodeLabel:     nodeLabel,
		StartedAt:     now,
		LastHeartbeat: now,
	}
}

func (m *Monitor) Heartbeat(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.inflight[jobID]; ok {
		job.LastHeartbeat = m.now()
	}
}

func (m *Monitor) Deregister(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.inflight, jobID)
}

// Status reports the active count and the stalled subset: jobs whose last
// heartbeat is older than the stall threshold.
func (m *Monitor) Status() Status {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{Active: len(m.inflight)}

	for _, job := range m.inflight {
		if now.Sub(job.LastHeartbeat) > m.stallThreshold {
			status.Stalled = append(status.Stalled, *job)
		}
	}

	return status
}
