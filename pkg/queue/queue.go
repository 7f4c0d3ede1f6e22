// Package queue provides the durable FIFO job queue with row-level locking
// for concurrent dequeue.
package queue

import (
	"context"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

// Stats summarizes the queue. Depth is the live count of pending rows.
type Stats struct {
	Depth         int   `json:"depth"`
	TotalEnqueued int64 `json:"total_enqueued"`
	TotalDone     int64 `json:"total_done"`
	TotalFailed   int64 `json:"total_failed"`
}

// TotalProcessed counts terminally handled jobs.
func (s Stats) TotalProcessed() int64 {
	return s.TotalDone + s.TotalFailed
}

// Notifier is invoked after a successful enqueue for opportunistic
// immediate pickup by idle workers.
type Notifier func(ctx context.Context, job *models.WorkerJob)

// Queue is the durable queue contract. A job's row shares the step
// execution's ID; re-enqueueing an ID (a retry) resets the existing row to
// pending while its attempts counter keeps accumulating, so maxAttempts
// bounds the total dequeues across retries.
type Queue interface {
	Enqueue(ctx context.Context, job *models.WorkerJob) error
	// Dequeue atomically claims the oldest pending row for workerID,
	// skipping rows locked by concurrent consumers. A nil job means no
	// eligible row, not an error.
	Dequeue(ctx context.Context, workerID string) (*models.WorkerJob, error)
	MarkDone(ctx context.Context, id string, result map[string]any) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	// Reclaim resets processing rows whose lock is older than olderThan
	// back to pending; rows already at their attempt cap are marked failed.
	// Returns how many rows were reset.
	Reclaim(ctx context.Context, olderThan time.Duration) (int, error)
	Stats(ctx context.Context) (Stats, error)
}
