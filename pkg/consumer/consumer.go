// Package consumer runs the concurrency-limited worker pool: dequeue,
// dispatch, retry with backoff, dead-lettering and heartbeat bracketing.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/config"
	"github.com/SoumadeepCh/FlowSync/pkg/dlq"
	"github.com/SoumadeepCh/FlowSync/pkg/eventbus"
	"github.com/SoumadeepCh/FlowSync/pkg/events"
	"github.com/SoumadeepCh/FlowSync/pkg/heartbeat"
	"github.com/SoumadeepCh/FlowSync/pkg/idempotency"
	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/observability"
	"github.com/SoumadeepCh/FlowSync/pkg/otelhelper"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
	"github.com/SoumadeepCh/FlowSync/pkg/protocol"
	"github.com/SoumadeepCh/FlowSync/pkg/queue"
	"github.com/SoumadeepCh/FlowSync/pkg/registry"
	"github.com/SoumadeepCh/FlowSync/pkg/results"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Consumer struct {
	id        string
	queue     queue.Queue
	registry  *registry.Registry
	steps     persistence.StepRepository
	results   *results.Handler
	heartbeat *heartbeat.Monitor
	dlq       *dlq.Sink
	idem      idempotency.Store
	metrics   *observability.Metrics
	audit     *observability.AuditLogger
	bus       eventbus.EventBus
	tracer    trace.Tracer
	logger    *slog.Logger
	cfg       config.Config

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewConsumer(
	id string,
	jobQueue queue.Queue,
	reg *registry.Registry,
	steps persistence.StepRepository,
	resultHandler *results.Handler,
	monitor *heartbeat.Monitor,
	sink *dlq.Sink,
	idem idempotency.Store,
	metrics *observability.Metrics,
	audit *observability.AuditLogger,
	bus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
	cfg config.Config,
) *Consumer {
	return &Consumer{
		id:        id,
		queue:     jobQueue,
		registry:  reg,
		steps:     steps,
		results:   resultHandler,
		heartbeat: monitor,
		dlq:       sink,
		idem:      idem,
		metrics:   metrics,
		audit:     audit,
		bus:       bus,
		tracer:    tracer,
		logger:    logger.With("module", "consumer", "consumer_id", id),
		cfg:       cfg,
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
}

// Start launches the worker pool and the lock scavenger. The pool size is a
// hard concurrency cap across all executions in the process.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.InfoContext(ctx, "Starting consumer", "workers", c.cfg.MaxConcurrency)

	for i := 0; i < c.cfg.MaxConcurrency; i++ {
		workerID := fmt.Sprintf("%s-%d", c.id, i)

		c.wg.Add(1)

		go func() {
			defer c.wg.Done()
			c.workerLoop(ctx, workerID)
		}()
	}

	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		c.reclaimLoop(ctx)
	}()
}

// Wake nudges one idle worker; used by the job-enqueued bus notification so
// fresh jobs do not wait out the poll interval.
func (c *Consumer) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// OnJobEnqueued adapts Wake to the event bus handler contract.
func (c *Consumer) OnJobEnqueued(_ context.Context, _ any) error {
	c.Wake()

	return nil
}

// Stop stops dispatching new jobs and waits up to the drain budget for
// active jobs; rows still processing afterwards are left locked for the
// scavenger of a future instance.
func (c *Consumer) Stop(ctx context.Context) {
	c.once.Do(func() { close(c.stop) })

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.InfoContext(ctx, "Consumer drained")
	case <-time.After(c.cfg.ConsumerDrain):
		c.logger.WarnContext(ctx, "Consumer drain timed out; leaving in-flight rows locked")
	}
}

func (c *Consumer) workerLoop(ctx context.Context, workerID string) {
	logger := c.logger.With("worker_id", workerID)

	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := c.queue.Dequeue(ctx, workerID)
		if err != nil {
			logger.ErrorContext(ctx, "Dequeue failed", "error", err)
			c.idle(ctx)

			continue
		}

		if job == nil {
			c.idle(ctx)

			continue
		}

		c.process(ctx, workerID, job)
	}
}

func (c *Consumer) idle(ctx context.Context) {
	timer := time.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-c.stop:
	case <-ctx.Done():
	case <-c.wake:
	case <-timer.C:
	}
}

func (c *Consumer) process(ctx context.Context, workerID string, job *models.WorkerJob) {
	logger := c.logger.With(
		"worker_id", workerID,
		"job_id", job.ID,
		"execution_id", job.ExecutionID,
		"node_id", job.Node.ID,
		"node_type", job.Node.Type,
		"attempt", job.Attempt,
	)

	c.heartbeat.Register(job.ID, job.ExecutionID, job.Node.Label)
	defer c.heartbeat.Deregister(job.ID)

	step, err := c.steps.GetByID(ctx, job.ID)
	if err != nil {
		logger.WarnContext(ctx, "Step row missing for dequeued job", "error", err)
		_ = c.queue.MarkFailed(ctx, job.ID, "step execution row missing")

		return
	}

	// A concurrent cancellation or branch skip settled the step already. A
	// running step is still acceptable: its lock may have been reclaimed
	// from a dead worker.
	if step.Status != models.StepStatusPending && step.Status != models.StepStatusRunning {
		logger.InfoContext(ctx, "Step no longer runnable", "step_status", step.Status)
		_ = c.queue.MarkFailed(ctx, job.ID, fmt.Sprintf("step is %s, not runnable", step.Status))

		return
	}

	now := time.Now()
	step.Status = models.StepStatusRunning
	step.Attempts = job.Attempt
	step.StartedAt = &now

	if err := c.steps.Update(ctx, step); err != nil {
		logger.ErrorContext(ctx, "Failed to mark step running", "error", err)
		_ = c.queue.MarkFailed(ctx, job.ID, "failed to mark step running")

		return
	}

	result := c.execute(ctx, job, logger)

	if result.Status == models.ResultStatusCompleted {
		_ = c.queue.MarkDone(ctx, job.ID, result.Result)
	} else {
		_ = c.queue.MarkFailed(ctx, job.ID, result.Error)
	}

	if result.Status == models.ResultStatusFailed && result.Retryable && job.Attempt <= job.Retry.MaxRetries {
		c.scheduleRetry(ctx, job, result, logger)

		return
	}

	if result.Status == models.ResultStatusFailed && job.Retry.MaxRetries > 0 {
		c.deadLetter(ctx, job, result)
	}

	if err := c.results.Handle(ctx, result); err != nil {
		logger.ErrorContext(ctx, "Result handling failed", "error", err)
	}
}

// execute dispatches to the registered handler under a tracing span,
// keeping the heartbeat fresh while the handler runs. Handler panics and
// errors become typed results; they never escape the worker.
func (c *Consumer) execute(ctx context.Context, job *models.WorkerJob, logger *slog.Logger) *models.WorkerResult {
	result := &models.WorkerResult{
		JobID:       job.ID,
		StepID:      job.ID,
		ExecutionID: job.ExecutionID,
		NodeID:      job.Node.ID,
		NodeType:    job.Node.Type,
	}

	handler, err := c.registry.Get(job.Node.Type)
	if err != nil {
		result.Status = models.ResultStatusFailed
		result.Error = err.Error()
		result.Retryable = false

		return result
	}

	var span trace.Span

	if c.tracer != nil {
		ctxWithSpan, started := otelhelper.StartSpan(ctx, c.tracer, "handler.execute",
			attribute.String(otelhelper.ExecutionIDKey, job.ExecutionID),
			attribute.String(otelhelper.NodeIDKey, job.Node.ID),
			attribute.String(otelhelper.NodeTypeKey, string(job.Node.Type)),
		)
		ctx, span = ctxWithSpan, started

		defer span.End()
	}

	stopBeat := c.keepAlive(job.ID)
	defer stopBeat()

	started := time.Now()
	output, execErr := handler.Execute(ctx, job)
	result.DurationMs = time.Since(started).Milliseconds()

	if execErr != nil {
		result.Status = models.ResultStatusFailed
		result.Error = execErr.Error()
		result.Retryable = protocol.IsRetryable(execErr)

		if span != nil {
			otelhelper.SetError(span, execErr)
		}

		logger.WarnContext(ctx, "Handler failed",
			"error", execErr,
			"retryable", result.Retryable,
			"duration_ms", result.DurationMs,
		)

		return result
	}

	result.Status = models.ResultStatusCompleted
	result.Result = output

	logger.InfoContext(ctx, "Handler completed", "duration_ms", result.DurationMs)

	return result
}

// keepAlive refreshes the job's heartbeat at half the stall threshold until
// the returned stop function is called.
func (c *Consumer) keepAlive(jobID string) func() {
	interval := c.cfg.HeartbeatStall / 2
	if interval <= 0 {
		interval = heartbeat.DefaultStallThreshold / 2
	}

	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.heartbeat.Heartbeat(jobID)
			}
		}
	}()

	var once sync.Once

	return func() { once.Do(func() { close(done) }) }
}

// scheduleRetry resets the step to pending, clears the idempotency key
// before re-enqueueing (otherwise the fresh publish would be rejected as a
// duplicate) and enqueues the next attempt after the backoff delay. The
// intermediate failure is not forwarded to the result handler.
func (c *Consumer) scheduleRetry(ctx context.Context, job *models.WorkerJob, result *models.WorkerResult, logger *slog.Logger) {
	delay := time.Duration(float64(job.Retry.BackoffMs)*math.Pow(job.Retry.BackoffMultiplier, float64(job.Attempt-1))) * time.Millisecond

	step, err := c.steps.GetByID(ctx, job.ID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load step for retry", "error", err)

		return
	}

	step.Status = models.StepStatusPending
	step.Error = fmt.Sprintf("Retry %d/%d: %s", job.Attempt, job.Retry.MaxRetries, result.Error)
	step.Attempts = job.Attempt

	if err := c.steps.Update(ctx, step); err != nil {
		logger.ErrorContext(ctx, "Failed to reset step for retry", "error", err)

		return
	}

	if err := c.idem.Remove(ctx, idempotency.Key(job.ExecutionID, job.Node.ID)); err != nil {
		logger.WarnContext(ctx, "Failed to clear idempotency key for retry", "error", err)
	}

	c.metrics.Retry()
	logger.InfoContext(ctx, "Retry scheduled", "delay", delay, "next_attempt", job.Attempt+1)

	next := *job
	next.Attempt = job.Attempt + 1

	time.AfterFunc(delay, func() {
		if err := c.queue.Enqueue(context.Background(), &next); err != nil {
			logger.Error("Failed to enqueue retry", "error", err)
		}
	})
}

func (c *Consumer) deadLetter(ctx context.Context, job *models.WorkerJob, result *models.WorkerResult) {
	c.dlq.Add(*job, result.Error, job.Attempt)
	c.metrics.DLQEntry()
	c.audit.Record(ctx, observability.AuditDLQEntry, "job", job.ID, map[string]any{
		"execution_id": job.ExecutionID,
		"node_id":      job.Node.ID,
		"error":        result.Error,
		"attempts":     job.Attempt,
	})

	event := events.DLQEntry{
		BaseEvent: events.BaseEvent{
			ID:         c.bus.GenerateID(),
			Type:       events.DLQEntryEvent,
			Timestamp:  time.Now(),
			WorkflowID: job.WorkflowID,
			WorkerID:   c.id,
		},
		JobID:       job.ID,
		ExecutionID: job.ExecutionID,
		NodeID:      job.Node.ID,
		Error:       result.Error,
		Attempts:    job.Attempt,
	}

	if err := c.bus.Publish(ctx, "dlq:"+job.ID, event); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish DLQ event", "job_id", job.ID, "error", err)
	}
}

func (c *Consumer) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.queue.Reclaim(ctx, c.cfg.ReclaimAfter); err != nil {
				c.logger.ErrorContext(ctx, "Lock reclaim failed", "error", err)
			}
		}
	}
}
