// Package dlq collects jobs whose retries are exhausted. Entries are never
// retried automatically.
package dlq

import (
	"sync"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

// Entry is one dead-lettered job.
type Entry struct {
	Job      models.WorkerJob `json:"job"`
	Error    string           `json:"error"`
	Attempts int              `json:"attempts"`
	FailedAt time.Time        `json:"failed_at"`
}

// Stats summarizes the sink.
type Stats struct {
	Size       int            `json:"size"`
	ByNodeType map[string]int `json:"by_node_type"`
}

// Sink is an append-only dead-letter collection.
type Sink struct {
	mu      sync.Mutex
	entries []Entry
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Add(job models.WorkerJob, errMsg string, attempts int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, Entry{
		Job:      job,
		Error:    errMsg,
		Attempts: attempts,
		FailedAt: time.Now(),
	})
}

// Items returns a copy of the entries in arrival order.
func (s *Sink) Items() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Entry, len(s.entries))
	copy(items, s.entries)

	return items
}

func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Size:       len(s.entries),
		ByNodeType: make(map[string]int),
	}

	for _, entry := range s.entries {
		stats.ByNodeType[string(entry.Job.Node.Type)]++
	}

	return stats
}

func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
}
