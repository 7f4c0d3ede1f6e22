package consumer_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/backpressure"
	"github.com/SoumadeepCh/FlowSync/pkg/config"
	"github.com/SoumadeepCh/FlowSync/pkg/consumer"
	"github.com/SoumadeepCh/FlowSync/pkg/dlq"
	"github.com/SoumadeepCh/FlowSync/pkg/eventbus"
	"github.com/SoumadeepCh/FlowSync/pkg/heartbeat"
	"github.com/SoumadeepCh/FlowSync/pkg/idempotency"
	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/observability"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence/memory"
	"github.com/SoumadeepCh/FlowSync/pkg/publisher"
	"github.com/SoumadeepCh/FlowSync/pkg/queue"
	"github.com/SoumadeepCh/FlowSync/pkg/registry"
	"github.com/SoumadeepCh/FlowSync/pkg/results"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store    *memory.Persistence
	queue    *queue.MemoryQueue
	idem     *idempotency.MemoryStore
	registry *registry.Registry
	metrics  *observability.Metrics
	sink     *dlq.Sink
	consumer *consumer.Consumer
}

func newHarness(t *testing.T, notify queue.Notifier) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := config.Default()
	cfg.MaxConcurrency = 2
	cfg.PollInterval = 10 * time.Millisecond

	logger := slog.Default()
	store := memory.NewPersistence()
	jobQueue := queue.NewMemoryQueue(notify)

	idem := idempotency.NewMemoryStore(logger)
	t.Cleanup(func() { _ = idem.Close() })

	bus := eventbus.NewInProcessBus(watermill.NopLogger{})
	require.NoError(t, bus.Subscribe(ctx))

	metrics := observability.NewMetrics()
	audit := observability.NewAuditLogger(store.Audit(), logger)
	controller := backpressure.NewController(200, 800, 1000)
	reg := registry.NewRegistry(logger)

	jobPublisher := publisher.NewPublisher(store.Steps(), jobQueue, idem, controller, metrics, logger, time.Minute)
	resultHandler := results.NewHandler(store, jobPublisher, bus, metrics, audit, logger)
	sink := dlq.NewSink()

	cons := consumer.NewConsumer("test", jobQueue, reg, store.Steps(), resultHandler,
		heartbeat.NewMonitor(time.Second), sink, idem, metrics, audit, bus, nil, logger, cfg)

	h := &harness{
		store:    store,
		queue:    jobQueue,
		idem:     idem,
		registry: reg,
		metrics:  metrics,
		sink:     sink,
		consumer: cons,
	}

	cons.Start(ctx)
	t.Cleanup(func() { cons.Stop(context.Background()) })

	return h
}

// seed prepares an active workflow, a running execution and one pending
// step with its queued job.
func (h *harness) seed(t *testing.T, node models.Node) *models.WorkerJob {
	t.Helper()

	ctx := context.Background()
	now := time.Now()

	workflow := &models.Workflow{
		ID:      "wf-1",
		Version: 1,
		Name:    "consumer test",
		Status:  models.WorkflowStatusActive,
		Definition: models.WorkflowDefinition{
			Nodes: []models.Node{
				{ID: "start", Type: models.NodeTypeStart},
				node,
				{ID: "end", Type: models.NodeTypeEnd},
			},
			Edges: []models.Edge{
				{ID: "e1", Source: "start", Target: node.ID},
				{ID: "e2", Source: node.ID, Target: "end"},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, h.store.Workflows().Save(ctx, workflow))

	execution := &models.Execution{
		ID:              "exec-1",
		WorkflowID:      "wf-1",
		WorkflowVersion: 1,
		Status:          models.ExecutionStatusRunning,
		StartedAt:       &now,
		CreatedAt:       now,
	}
	require.NoError(t, h.store.Executions().Create(ctx, execution))

	startStep := &models.StepExecution{
		ID:          "step-start",
		ExecutionID: "exec-1",
		NodeID:      "start",
		NodeType:    models.NodeTypeStart,
		Status:      models.StepStatusCompleted,
		Attempts:    1,
	}
	require.NoError(t, h.store.Steps().Create(ctx, startStep))

	step := &models.StepExecution{
		ID:          "step-1",
		ExecutionID: "exec-1",
		NodeID:      node.ID,
		NodeLabel:   node.Label,
		NodeType:    node.Type,
		Status:      models.StepStatusPending,
		Attempts:    1,
	}
	require.NoError(t, h.store.Steps().Create(ctx, step))

	key := idempotency.Key("exec-1", node.ID)
	_, err := h.idem.CheckAndSet(ctx, key, step.ID, time.Minute)
	require.NoError(t, err)

	return &models.WorkerJob{
		ID:          "step-1",
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Node:        node,
		Attempt:     1,
		Retry:       models.RetryPolicyFromConfig(node.Config),
	}
}

func waitFor(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if check() {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("condition not met before timeout")
}

type failingHandler struct {
	nodeType models.NodeType
}

func (h *failingHandler) Type() models.NodeType {
	return h.nodeType
}

func (h *failingHandler) Execute(_ context.Context, _ *models.WorkerJob) (map[string]any, error) {
	return nil, errors.New("always fails")
}

// A missing handler is a synthetic non-retryable failure: the job never
// retries even with a retry budget.
func TestConsumer_MissingHandlerFailsWithoutRetry(t *testing.T) {
	h := newHarness(t, nil)

	job := h.seed(t, models.Node{
		ID:     "a",
		Type:   models.NodeTypeAction,
		Config: map[string]any{"retry": map[string]any{"maxRetries": float64(3)}},
	})

	require.NoError(t, h.queue.Enqueue(context.Background(), job))

	waitFor(t, 3*time.Second, func() bool {
		execution, err := h.store.Executions().GetByID(context.Background(), "exec-1")

		return err == nil && execution.Status == models.ExecutionStatusFailed
	})

	step, err := h.store.Steps().GetByID(context.Background(), "step-1")
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusFailed, step.Status)
	assert.Equal(t, 1, step.Attempts)
	assert.Equal(t, int64(0), h.metrics.Snapshot().Retries)
}

// The idempotency key must be cleared before the retry enqueue: the
// notifier observes the key state at the instant attempt 2 enters the
// queue.
func TestConsumer_RetryClearsIdempotencyKeyBeforeEnqueue(t *testing.T) {
	var (
		mu       sync.Mutex
		keyFree  bool
		observed bool
	)

	var h *harness

	h = newHarness(t, func(ctx context.Context, job *models.WorkerJob) {
		if job.Attempt != 2 {
			return
		}

		result, err := h.idem.CheckAndSet(ctx, idempotency.Key(job.ExecutionID, job.Node.ID), "probe", time.Minute)

		mu.Lock()
		observed = true
		keyFree = err == nil && !result.Duplicate
		mu.Unlock()

		// Leave the key free again so the probe does not disturb the run.
		_ = h.idem.Remove(ctx, idempotency.Key(job.ExecutionID, job.Node.ID))
	})

	h.registry.Register(&failingHandler{nodeType: models.NodeTypeAction})

	job := h.seed(t, models.Node{
		ID:   "a",
		Type: models.NodeTypeAction,
		Config: map[string]any{
			"retry": map[string]any{"maxRetries": float64(1), "backoffMs": float64(10)},
		},
	})

	require.NoError(t, h.queue.Enqueue(context.Background(), job))

	waitFor(t, 3*time.Second, func() bool {
		execution, err := h.store.Executions().GetByID(context.Background(), "exec-1")

		return err == nil && execution.Status == models.ExecutionStatusFailed
	})

	mu.Lock()
	defer mu.Unlock()
	require.True(t, observed, "retry enqueue never happened")
	assert.True(t, keyFree, "idempotency key still claimed when the retry was enqueued")

	step, err := h.store.Steps().GetByID(context.Background(), "step-1")
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusFailed, step.Status)
	assert.Equal(t, 2, step.Attempts)
	assert.Equal(t, int64(1), h.metrics.Snapshot().Retries)
}

// A step settled by cancellation before dispatch is not executed.
func TestConsumer_SkippedStepIsNotExecuted(t *testing.T) {
	h := newHarness(t, nil)
	h.registry.Register(&failingHandler{nodeType: models.NodeTypeAction})

	job := h.seed(t, models.Node{ID: "a", Type: models.NodeTypeAction})

	// Settle the step before the job is picked up.
	step, err := h.store.Steps().GetByID(context.Background(), "step-1")
	require.NoError(t, err)
	step.Status = models.StepStatusSkipped
	require.NoError(t, h.store.Steps().Update(context.Background(), step))

	require.NoError(t, h.queue.Enqueue(context.Background(), job))

	waitFor(t, 3*time.Second, func() bool {
		row, ok := h.queue.Row("step-1")

		return ok && row.Status == models.JobStatusFailed
	})

	// The execution was never advanced or failed.
	execution, err := h.store.Executions().GetByID(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, execution.Status)

	step, err = h.store.Steps().GetByID(context.Background(), "step-1")
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusSkipped, step.Status)
}
