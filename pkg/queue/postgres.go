package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

// PostgresQueue implements Queue on a job_queue table. Dequeue claims rows
// with SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers never hand
// the same row to two consumers.
type PostgresQueue struct {
	db     *sql.DB
	logger *slog.Logger
	notify Notifier

	totalEnqueued atomic.Int64
	totalDone     atomic.Int64
	totalFailed   atomic.Int64
}

func NewPostgresQueue(db *sql.DB, logger *slog.Logger, notify Notifier) (*PostgresQueue, error) {
	q := &PostgresQueue{
		db:     db,
		logger: logger.With("module", "job_queue"),
		notify: notify,
	}

	if err := q.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize job_queue schema: %w", err)
	}

	return q, nil
}

func (q *PostgresQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS job_queue (
			id           TEXT PRIMARY KEY,
			execution_id TEXT NOT NULL,
			node_id      TEXT NOT NULL,
			node_label   TEXT NOT NULL DEFAULT '',
			node_type    TEXT NOT NULL,
			payload      JSONB NOT NULL,
			status       TEXT NOT NULL DEFAULT 'pending',
			attempts     INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 1,
			locked_at    TIMESTAMPTZ,
			locked_by    TEXT,
			result       JSONB,
			error        TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_job_queue_status_created_at
			ON job_queue (status, created_at);
	`)

	return err
}

func (q *PostgresQueue) Enqueue(ctx context.Context, job *models.WorkerJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	// Re-enqueueing an existing ID is a retry: the row resets to pending
	// and the attempts counter keeps accumulating toward max_attempts.
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO job_queue (id, execution_id, node_id, node_label, node_type, payload, status, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)
		ON CONFLICT (id) DO UPDATE SET
			payload   = EXCLUDED.payload,
			status    = 'pending',
			locked_at = NULL,
			locked_by = NULL,
			result    = NULL,
			error     = NULL
	`, job.ID, job.ExecutionID, job.Node.ID, job.Node.Label, string(job.Node.Type), payload, job.Retry.MaxRetries+1)
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}

	q.totalEnqueued.Add(1)

	if q.notify != nil {
		q.notify(ctx, job)
	}

	return nil
}

func (q *PostgresQueue) Dequeue(ctx context.Context, workerID string) (*models.WorkerJob, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin dequeue transaction: %w", err)
	}

	var (
		id      string
		payload []byte
	)

	err = tx.QueryRowContext(ctx, `
		SELECT id, payload
		FROM job_queue
		WHERE status = 'pending'
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&id, &payload)
	if err != nil {
		_ = tx.Rollback()

		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to select pending job: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE job_queue
		SET status = 'processing', locked_at = now(), locked_by = $2, attempts = attempts + 1
		WHERE id = $1
	`, id, workerID)
	if err != nil {
		_ = tx.Rollback()

		return nil, fmt.Errorf("failed to lock job %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit dequeue of %s: %w", id, err)
	}

	var job models.WorkerJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload of job %s: %w", id, err)
	}

	return &job, nil
}

func (q *PostgresQueue) MarkDone(ctx context.Context, id string, result map[string]any) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result of job %s: %w", id, err)
	}

	_, err = q.db.ExecContext(ctx,
		`UPDATE job_queue SET status = 'done', result = $2 WHERE id = $1`,
		id, encoded,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job %s done: %w", id, err)
	}

	q.totalDone.Add(1)

	return nil
}

func (q *PostgresQueue) MarkFailed(ctx context.Context, id string, errMsg string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE job_queue SET status = 'failed', error = $2 WHERE id = $1`,
		id, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", id, err)
	}

	q.totalFailed.Add(1)

	return nil
}

func (q *PostgresQueue) Reclaim(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	// Exhausted rows fail instead of cycling forever.
	_, err := q.db.ExecContext(ctx, `
		UPDATE job_queue
		SET status = 'failed', error = 'lock reclaimed with attempts exhausted'
		WHERE status = 'processing' AND locked_at < $1 AND attempts >= max_attempts
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to fail exhausted stale jobs: %w", err)
	}

	result, err := q.db.ExecContext(ctx, `
		UPDATE job_queue
		SET status = 'pending', locked_at = NULL, locked_by = NULL
		WHERE status = 'processing' AND locked_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale jobs: %w", err)
	}

	reclaimed, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}

	if reclaimed > 0 {
		q.logger.WarnContext(ctx, "Reclaimed stale processing jobs", "count", reclaimed)
	}

	return int(reclaimed), nil
}

func (q *PostgresQueue) Stats(ctx context.Context) (Stats, error) {
	var depth int

	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM job_queue WHERE status = 'pending'`,
	).Scan(&depth)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count pending jobs: %w", err)
	}

	return Stats{
		Depth:         depth,
		TotalEnqueued: q.totalEnqueued.Load(),
		TotalDone:     q.totalDone.Load(),
		TotalFailed:   q.totalFailed.Load(),
	}, nil
}
