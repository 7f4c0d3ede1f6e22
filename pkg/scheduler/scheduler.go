// Package scheduler fires workflows from time-based triggers on a
// non-overlapping tick loop.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/cron"
	"github.com/SoumadeepCh/FlowSync/pkg/eventbus"
	"github.com/SoumadeepCh/FlowSync/pkg/events"
	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/observability"
	"github.com/SoumadeepCh/FlowSync/pkg/orchestrator"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
)

type Scheduler struct {
	triggers     persistence.TriggerRepository
	workflows    persistence.WorkflowRepository
	orchestrator *orchestrator.Orchestrator
	bus          eventbus.EventBus
	metrics      *observability.Metrics
	audit        *observability.AuditLogger
	logger       *slog.Logger
	tick         time.Duration

	tickMu sync.Mutex
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewScheduler(
	store persistence.Persistence,
	orch *orchestrator.Orchestrator,
	bus eventbus.EventBus,
	metrics *observability.Metrics,
	audit *observability.AuditLogger,
	logger *slog.Logger,
	tick time.Duration,
) *Scheduler {
	if tick <= 0 {
		tick = 60 * time.Second
	}

	return &Scheduler{
		triggers:     store.Triggers(),
		workflows:    store.Workflows(),
		orchestrator: orch,
		bus:          bus,
		metrics:      metrics,
		audit:        audit,
		logger:       logger.With("module", "scheduler"),
		tick:         tick,
		stop:         make(chan struct{}),
		now:          time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.InfoContext(ctx, "Starting scheduler", "tick", s.tick)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runTick(ctx)
			}
		}
	}()
}

func (s *Scheduler) Stop(ctx context.Context) {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.logger.InfoContext(ctx, "Scheduler stopped")
}

// runTick evaluates every enabled cron trigger once. The mutex prevents
// re-entrant ticks when evaluation outlasts the tick interval.
func (s *Scheduler) runTick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.now()

	triggers, err := s.triggers.ListByType(ctx, models.TriggerTypeCron, true)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list cron triggers", "error", err)

		return
	}

	for _, trigger := range triggers {
		s.evaluate(ctx, trigger, now)
	}
}

func (s *Scheduler) evaluate(ctx context.Context, trigger *models.Trigger, now time.Time) {
	logger := s.logger.With("trigger_id", trigger.ID, "workflow_id", trigger.WorkflowID)

	workflow, err := s.workflows.GetByID(ctx, trigger.WorkflowID)
	if err != nil {
		logger.WarnContext(ctx, "Trigger references unknown workflow", "error", err)

		return
	}

	if workflow.Status != models.WorkflowStatusActive {
		return
	}

	expr := trigger.CronExpression()
	if expr == "" || !cron.ShouldRun(expr, now) {
		return
	}

	// Anti-double-fire: at most one start per (trigger, calendar minute).
	if trigger.LastFiredAt != nil && trigger.LastFiredAt.Truncate(time.Minute).Equal(now.Truncate(time.Minute)) {
		return
	}

	fired := now
	trigger.LastFiredAt = &fired
	trigger.NextRunAt = cron.NextRunTime(expr, now)

	if err := s.triggers.Save(ctx, trigger); err != nil {
		logger.ErrorContext(ctx, "Failed to record trigger firing", "error", err)

		return
	}

	s.audit.Record(ctx, observability.AuditTriggerFired, "trigger", trigger.ID, map[string]any{
		"workflow_id": trigger.WorkflowID,
		"expression":  expr,
	})

	event := events.TriggerFired{
		BaseEvent: events.BaseEvent{
			ID:         s.bus.GenerateID(),
			Type:       events.TriggerFiredEvent,
			Timestamp:  now,
			WorkflowID: trigger.WorkflowID,
		},
		TriggerID:   trigger.ID,
		TriggerType: trigger.Type,
	}

	if err := s.bus.Publish(ctx, "trigger:"+trigger.ID, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish trigger.fired", "error", err)
	}

	input, _ := trigger.Config["input"].(map[string]any)

	logger.InfoContext(ctx, "Cron trigger fired", "expression", expr)

	// Detached: the tick never waits out an execution.
	go func() {
		result, err := s.orchestrator.ExecuteWorkflow(context.Background(), trigger.WorkflowID, input, "")
		if err != nil {
			logger.Error("Triggered execution failed to start", "error", err)

			return
		}

		logger.Info("Triggered execution settled",
			"execution_id", result.ExecutionID,
			"status", result.Status,
		)
	}()
}
