package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/backpressure"
	"github.com/SoumadeepCh/FlowSync/pkg/eventbus"
	"github.com/SoumadeepCh/FlowSync/pkg/idempotency"
	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/observability"
	"github.com/SoumadeepCh/FlowSync/pkg/orchestrator"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence/memory"
	"github.com/SoumadeepCh/FlowSync/pkg/publisher"
	"github.com/SoumadeepCh/FlowSync/pkg/queue"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	scheduler *Scheduler
	store     *memory.Persistence
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.Default()
	store := memory.NewPersistence()

	bus := eventbus.NewInProcessBus(watermill.NopLogger{})
	hub := eventbus.NewCompletionHub()
	require.NoError(t, hub.Attach(bus))

	idem := idempotency.NewMemoryStore(logger)
	t.Cleanup(func() { _ = idem.Close() })

	metrics := observability.NewMetrics()
	audit := observability.NewAuditLogger(store.Audit(), logger)
	jobQueue := queue.NewMemoryQueue(nil)
	controller := backpressure.NewController(200, 800, 1000)

	jobPublisher := publisher.NewPublisher(store.Steps(), jobQueue, idem, controller, metrics, logger, time.Minute)

	// No consumer runs in these tests; the short await deadline keeps the
	// detached executions from lingering.
	orch := orchestrator.NewOrchestrator(store, jobPublisher, hub, bus, metrics, audit, logger, 50*time.Millisecond)

	return &fixture{
		scheduler: NewScheduler(store, orch, bus, metrics, audit, logger, time.Minute),
		store:     store,
	}
}

func (f *fixture) seed(t *testing.T, workflowStatus models.WorkflowStatus, expression string, enabled bool) *models.Trigger {
	t.Helper()

	ctx := context.Background()
	now := time.Now()

	workflow := &models.Workflow{
		ID:      "wf-1",
		Version: 1,
		Name:    "scheduled workflow",
		Status:  workflowStatus,
		Definition: models.WorkflowDefinition{
			Nodes: []models.Node{
				{ID: "start", Type: models.NodeTypeStart},
				{ID: "end", Type: models.NodeTypeEnd},
			},
			Edges: []models.Edge{{ID: "e1", Source: "start", Target: "end"}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.store.Workflows().Save(ctx, workflow))

	trigger := &models.Trigger{
		ID:         "trig-1",
		WorkflowID: "wf-1",
		Type:       models.TriggerTypeCron,
		Config:     map[string]any{"expression": expression},
		Enabled:    enabled,
		CreatedAt:  now,
	}
	require.NoError(t, f.store.Triggers().Save(ctx, trigger))

	return trigger
}

func (f *fixture) executionCount(t *testing.T) int {
	t.Helper()

	executions, err := f.store.Executions().ListByWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)

	return len(executions)
}

func TestTick_FiresDueTrigger(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.WorkflowStatusActive, "* * * * *", true)

	now := time.Date(2026, 8, 5, 9, 30, 5, 0, time.UTC)
	f.scheduler.now = func() time.Time { return now }

	f.scheduler.runTick(context.Background())

	trigger, err := f.store.Triggers().GetByID(context.Background(), "trig-1")
	require.NoError(t, err)
	require.NotNil(t, trigger.LastFiredAt)
	assert.True(t, trigger.LastFiredAt.Equal(now))
	require.NotNil(t, trigger.NextRunAt)
	assert.Equal(t, now.Truncate(time.Minute).Add(time.Minute), *trigger.NextRunAt)

	waitForExecutions(t, f, 1)
}

// P8: at most one execution per (trigger, calendar minute).
func TestTick_AntiDoubleFire(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.WorkflowStatusActive, "* * * * *", true)

	base := time.Date(2026, 8, 5, 9, 30, 5, 0, time.UTC)

	f.scheduler.now = func() time.Time { return base }
	f.scheduler.runTick(context.Background())

	// A second tick in the same calendar minute must not fire again.
	f.scheduler.now = func() time.Time { return base.Add(20 * time.Second) }
	f.scheduler.runTick(context.Background())

	waitForExecutions(t, f, 1)

	// The next minute fires again.
	f.scheduler.now = func() time.Time { return base.Add(time.Minute) }
	f.scheduler.runTick(context.Background())

	waitForExecutions(t, f, 2)
}

func TestTick_SkipsDisabledTrigger(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.WorkflowStatusActive, "* * * * *", false)

	f.scheduler.runTick(context.Background())

	// Disabled triggers are filtered out at the repository level.
	assert.Equal(t, 0, f.executionCount(t))
}

func TestTick_SkipsInactiveWorkflow(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.WorkflowStatusDraft, "* * * * *", true)

	f.scheduler.runTick(context.Background())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.executionCount(t))
}

func TestTick_SkipsNonMatchingExpression(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.WorkflowStatusActive, "30 4 * * *", true)

	f.scheduler.now = func() time.Time { return time.Date(2026, 8, 5, 9, 30, 0, 0, time.UTC) }
	f.scheduler.runTick(context.Background())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.executionCount(t))
}

func TestTick_SkipsInvalidExpression(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.WorkflowStatusActive, "not a cron", true)

	f.scheduler.runTick(context.Background())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.executionCount(t))
}

// waitForExecutions polls until the detached execution goroutines have
// created their rows.
func waitForExecutions(t *testing.T, f *fixture, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		if f.executionCount(t) == want {
			// Settle briefly to catch over-firing.
			time.Sleep(30 * time.Millisecond)
			require.Equal(t, want, f.executionCount(t))

			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("expected %d executions, found %d", want, f.executionCount(t))
}
