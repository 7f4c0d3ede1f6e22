package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/eventbus"
	"github.com/SoumadeepCh/FlowSync/pkg/events"
	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/observability"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
)

type Execution struct {
	executions persistence.ExecutionRepository
	steps      persistence.StepRepository
	bus        eventbus.EventBus
	metrics    *observability.Metrics
	audit      *observability.AuditLogger
	logger     *slog.Logger
}

func NewExecution(
	store persistence.Persistence,
	bus eventbus.EventBus,
	metrics *observability.Metrics,
	audit *observability.AuditLogger,
	logger *slog.Logger,
) *Execution {
	return &Execution{
		executions: store.Executions(),
		steps:      store.Steps(),
		bus:        bus,
		metrics:    metrics,
		audit:      audit,
		logger:     logger.With("module", "execution_service"),
	}
}

// ExecutionDetail pairs an execution with its steps.
type ExecutionDetail struct {
	Execution *models.Execution       `json:"execution"`
	Steps     []*models.StepExecution `json:"steps"`
}

func (s *Execution) Get(ctx context.Context, id string) (*ExecutionDetail, error) {
	execution, err := s.executions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	steps, err := s.steps.ListByExecution(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ExecutionDetail{Execution: execution, Steps: steps}, nil
}

// Cancel flips the execution to cancelled and sweeps its unsettled steps to
// skipped. In-flight handlers are not preempted; their late results are
// recorded but the result handler refuses to advance a non-running
// execution.
func (s *Execution) Cancel(ctx context.Context, id string) (*models.Execution, error) {
	execution, err := s.executions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if execution.Status.Terminal() {
		return nil, fmt.Errorf("execution %s is %s: %w", id, execution.Status, ErrExecutionTerminal)
	}

	now := time.Now()
	execution.Status = models.ExecutionStatusCancelled
	execution.CompletedAt = &now

	if err := s.executions.Update(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to cancel execution %s: %w", id, err)
	}

	swept, err := s.steps.SweepUnsettled(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to sweep steps of cancelled execution", "execution_id", id, "error", err)
	}

	s.metrics.ExecutionCancelled()
	s.audit.Record(ctx, observability.AuditExecutionCancelled, "execution", id, map[string]any{
		"steps_skipped": swept,
	})

	event := events.ExecutionCancelled{
		BaseEvent: events.BaseEvent{
			ID:         s.bus.GenerateID(),
			Type:       events.ExecutionCancelledEvent,
			Timestamp:  now,
			WorkflowID: execution.WorkflowID,
		},
		ExecutionID: execution.ID,
	}

	if err := s.bus.Publish(ctx, "done:"+execution.ID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish cancellation signal", "execution_id", id, "error", err)
	}

	return execution, nil
}
