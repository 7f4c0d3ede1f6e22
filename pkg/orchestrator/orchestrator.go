// Package orchestrator starts workflow executions, seeds the initial jobs
// and awaits completion signals.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/eventbus"
	"github.com/SoumadeepCh/FlowSync/pkg/events"
	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/observability"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
	"github.com/SoumadeepCh/FlowSync/pkg/publisher"
)

// ErrWorkflowNotActive gates execution to active workflows.
var ErrWorkflowNotActive = errors.New("workflow is not active")

// Result is what the caller gets back once the execution settles (or the
// deadline passes).
type Result struct {
	ExecutionID string                 `json:"execution_id"`
	Status      models.ExecutionStatus `json:"status"`
	Output      map[string]any         `json:"output,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

type Orchestrator struct {
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	publisher  *publisher.Publisher
	hub        *eventbus.CompletionHub
	bus        eventbus.EventBus
	metrics    *observability.Metrics
	audit      *observability.AuditLogger
	logger     *slog.Logger
	timeout    time.Duration
}

func NewOrchestrator(
	store persistence.Persistence,
	pub *publisher.Publisher,
	hub *eventbus.CompletionHub,
	bus eventbus.EventBus,
	metrics *observability.Metrics,
	audit *observability.AuditLogger,
	logger *slog.Logger,
	timeout time.Duration,
) *Orchestrator {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Orchestrator{
		workflows:  store.Workflows(),
		executions: store.Executions(),
		publisher:  pub,
		hub:        hub,
		bus:        bus,
		metrics:    metrics,
		audit:      audit,
		logger:     logger.With("module", "orchestrator"),
		timeout:    timeout,
	}
}

// ExecuteWorkflow starts an execution and blocks until its completion
// signal or the deadline. A timed-out execution is reported as failed but
// keeps progressing in state.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, workflowID string, input map[string]any, userID string) (*Result, error) {
	executionID, wait, err := o.Begin(ctx, workflowID, input, userID)
	if err != nil {
		return nil, err
	}

	if wait == nil {
		// Empty definition: the execution completed synchronously.
		return &Result{ExecutionID: executionID, Status: models.ExecutionStatusCompleted, Output: map[string]any{}}, nil
	}

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case signal := <-wait:
		return &Result{
			ExecutionID: executionID,
			Status:      signal.Status,
			Output:      signal.Output,
			Error:       signal.Error,
		}, nil
	case <-timer.C:
		o.hub.Discard(executionID)
		o.logger.WarnContext(ctx, "Execution await deadline passed", "execution_id", executionID, "timeout", o.timeout)

		return &Result{
			ExecutionID: executionID,
			Status:      models.ExecutionStatusFailed,
			Error:       fmt.Sprintf("Execution timed out (%s)", o.timeout),
		}, nil
	case <-ctx.Done():
		o.hub.Discard(executionID)

		return nil, ctx.Err()
	}
}

// Begin creates the execution, registers the completion waiter and seeds
// the initial jobs. The waiter is registered strictly before the first
// enqueue so the terminal signal cannot be lost. A nil channel means the
// definition had no runnable nodes and the execution completed immediately.
func (o *Orchestrator) Begin(ctx context.Context, workflowID string, input map[string]any, userID string) (string, <-chan eventbus.CompletionSignal, error) {
	workflow, err := o.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return "", nil, err
	}

	if workflow.Status != models.WorkflowStatusActive {
		return "", nil, fmt.Errorf("workflow %s: %w", workflowID, ErrWorkflowNotActive)
	}

	now := time.Now()
	execution := &models.Execution{
		ID:              "exec-" + o.bus.GenerateID(),
		WorkflowID:      workflow.ID,
		WorkflowVersion: workflow.Version,
		Status:          models.ExecutionStatusRunning,
		Input:           input,
		UserID:          userID,
		StartedAt:       &now,
		CreatedAt:       now,
	}

	if err := o.executions.Create(ctx, execution); err != nil {
		return "", nil, fmt.Errorf("failed to create execution: %w", err)
	}

	logger := o.logger.With("workflow_id", workflow.ID, "execution_id", execution.ID)
	logger.InfoContext(ctx, "Execution started", "workflow_version", workflow.Version)

	o.metrics.ExecutionStarted()
	o.audit.Record(ctx, observability.AuditExecutionStarted, "execution", execution.ID, map[string]any{
		"workflow_id":      workflow.ID,
		"workflow_version": workflow.Version,
		"user_id":          userID,
	})

	startedEvent := events.ExecutionStarted{
		BaseEvent: events.BaseEvent{
			ID:         o.bus.GenerateID(),
			Type:       events.ExecutionStartedEvent,
			Timestamp:  now,
			WorkflowID: workflow.ID,
		},
		ExecutionID: execution.ID,
		Input:       input,
	}

	if err := o.bus.Publish(ctx, "execution:"+execution.ID, startedEvent); err != nil {
		logger.WarnContext(ctx, "Failed to publish execution.started", "error", err)
	}

	initial := workflow.Definition.InitialNodes()
	if len(initial) == 0 {
		completed := time.Now()
		execution.Status = models.ExecutionStatusCompleted
		execution.Output = map[string]any{}
		execution.CompletedAt = &completed

		if err := o.executions.Update(ctx, execution); err != nil {
			return "", nil, fmt.Errorf("failed to complete empty execution: %w", err)
		}

		o.metrics.ExecutionCompleted()
		logger.InfoContext(ctx, "Execution completed immediately: no initial nodes")

		return execution.ID, nil, nil
	}

	wait := o.hub.Register(execution.ID)

	requests := make([]publisher.Request, 0, len(initial))
	for _, node := range initial {
		requests = append(requests, publisher.Request{
			ExecutionID: execution.ID,
			WorkflowID:  workflow.ID,
			Node:        node,
			Input:       input,
			Attempt:     1,
		})
	}

	if _, err := o.publisher.PublishMany(ctx, requests); err != nil {
		o.hub.Discard(execution.ID)

		return "", nil, fmt.Errorf("failed to seed initial jobs: %w", err)
	}

	return execution.ID, wait, nil
}
