package queue

import (
	"context"
	"sync"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

// MemoryQueue implements Queue with the same claim semantics as the
// Postgres implementation, for tests and single-process development runs.
type MemoryQueue struct {
	mu     sync.Mutex
	rows   map[string]*models.QueuedJob
	order  []string
	notify Notifier

	totalEnqueued int64
	totalDone     int64
	totalFailed   int64
}

func NewMemoryQueue(notify Notifier) *MemoryQueue {
	return &MemoryQueue{
		rows:   make(map[string]*models.QueuedJob),
		notify: notify,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job *models.WorkerJob) error {
	q.mu.Lock()

	row, exists := q.rows[job.ID]
	if exists {
		// Retry of a known job: reset the row, keep the attempts counter.
		row.Payload = *job
		row.Status = models.JobStatusPending
		row.LockedAt = nil
		row.LockedBy = ""
		row.Result = nil
		row.Error = ""
	} else {
		q.rows[job.ID] = &models.QueuedJob{
			ID:          job.ID,
			ExecutionID: job.ExecutionID,
			NodeID:      job.Node.ID,
			NodeLabel:   job.Node.Label,
			NodeType:    job.Node.Type,
			Payload:     *job,
			Status:      models.JobStatusPending,
			MaxAttempts: job.Retry.MaxRetries + 1,
			CreatedAt:   time.Now(),
		}
		q.order = append(q.order, job.ID)
	}

	q.totalEnqueued++
	q.mu.Unlock()

	if q.notify != nil {
		q.notify(ctx, job)
	}

	return nil
}

func (q *MemoryQueue) Dequeue(_ context.Context, workerID string) (*models.WorkerJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		row := q.rows[id]
		if row.Status != models.JobStatusPending {
			continue
		}

		now := time.Now()
		row.Status = models.JobStatusProcessing
		row.LockedAt = &now
		row.LockedBy = workerID
		row.Attempts++

		job := row.Payload

		return &job, nil
	}

	return nil, nil
}

func (q *MemoryQueue) MarkDone(_ context.Context, id string, result map[string]any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if row, ok := q.rows[id]; ok {
		row.Status = models.JobStatusDone
		row.Result = result
		q.totalDone++
	}

	return nil
}

func (q *MemoryQueue) MarkFailed(_ context.Context, id string, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if row, ok := q.rows[id]; ok {
		row.Status = models.JobStatusFailed
		row.Error = errMsg
		q.totalFailed++
	}

	return nil
}

func (q *MemoryQueue) Reclaim(_ context.Context, olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	reclaimed := 0

	for _, row := range q.rows {
		if row.Status != models.JobStatusProcessing || row.LockedAt == nil || row.LockedAt.After(cutoff) {
			continue
		}

		if row.Attempts >= row.MaxAttempts {
			row.Status = models.JobStatusFailed
			row.Error = "lock reclaimed with attempts exhausted"
			q.totalFailed++

			continue
		}

		row.Status = models.JobStatusPending
		row.LockedAt = nil
		row.LockedBy = ""
		reclaimed++
	}

	return reclaimed, nil
}

func (q *MemoryQueue) Stats(_ context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	depth := 0

	for _, row := range q.rows {
		if row.Status == models.JobStatusPending {
			depth++
		}
	}

	return Stats{
		Depth:         depth,
		TotalEnqueued: q.totalEnqueued,
		TotalDone:     q.totalDone,
		TotalFailed:   q.totalFailed,
	}, nil
}

// Row returns a copy of the queue row, for tests and diagnostics.
func (q *MemoryQueue) Row(id string) (models.QueuedJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	row, ok := q.rows[id]
	if !ok {
		return models.QueuedJob{}, false
	}

	return *row, true
}
