// Package publisher materializes step records and enqueues their jobs under
// idempotency and backpressure admission.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/backpressure"
	"github.com/SoumadeepCh/FlowSync/pkg/idempotency"
	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/observability"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
	"github.com/SoumadeepCh/FlowSync/pkg/queue"
	"github.com/google/uuid"
)

// Request describes one node to schedule.
type Request struct {
	ExecutionID     string
	WorkflowID      string
	Node            models.Node
	Input           map[string]any
	PreviousResults map[string]any
	UpstreamResults map[string]any
	Attempt         int
}

type Publisher struct {
	steps        persistence.StepRepository
	queue        queue.Queue
	idem         idempotency.Store
	backpressure *backpressure.Controller
	metrics      *observability.Metrics
	logger       *slog.Logger
	ttl          time.Duration
}

func NewPublisher(
	steps persistence.StepRepository,
	jobQueue queue.Queue,
	idem idempotency.Store,
	controller *backpressure.Controller,
	metrics *observability.Metrics,
	logger *slog.Logger,
	idempotencyTTL time.Duration,
) *Publisher {
	if idempotencyTTL <= 0 {
		idempotencyTTL = idempotency.DefaultTTL
	}

	return &Publisher{
		steps:        steps,
		queue:        jobQueue,
		idem:         idem,
		backpressure: controller,
		metrics:      metrics,
		logger:       logger.With("module", "publisher"),
		ttl:          idempotencyTTL,
	}
}

// Publish creates the step row and enqueues its job. A duplicate
// publication returns the existing step's ID; a backpressure rejection
// returns the new step's ID with the row left pending and nothing enqueued.
func (p *Publisher) Publish(ctx context.Context, req Request) (string, error) {
	if req.Attempt < 1 {
		req.Attempt = 1
	}

	retry := models.RetryPolicyFromConfig(req.Node.Config)
	now := time.Now()

	step := &models.StepExecution{
		ID:          uuid.New().String(),
		ExecutionID: req.ExecutionID,
		NodeID:      req.Node.ID,
		NodeLabel:   req.Node.Label,
		NodeType:    req.Node.Type,
		Status:      models.StepStatusPending,
		Attempts:    req.Attempt,
		StartedAt:   &now,
	}

	if err := p.steps.Create(ctx, step); err != nil {
		return "", fmt.Errorf("failed to create step for node %s: %w", req.Node.ID, err)
	}

	key := idempotency.Key(req.ExecutionID, req.Node.ID)

	claim, err := p.idem.CheckAndSet(ctx, key, step.ID, p.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to claim idempotency key %s: %w", key, err)
	}

	if claim.Duplicate {
		p.metrics.PublishDuplicate()
		p.logger.DebugContext(ctx, "Duplicate publication suppressed",
			"execution_id", req.ExecutionID,
			"node_id", req.Node.ID,
			"existing_step_id", claim.ExistingStepID,
		)

		if err := p.steps.Delete(ctx, step.ID); err != nil {
			p.logger.WarnContext(ctx, "Failed to delete duplicate step row", "step_id", step.ID, "error", err)
		}

		return claim.ExistingStepID, nil
	}

	stats, err := p.queue.Stats(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read queue stats: %w", err)
	}

	if !p.backpressure.Admit(stats.Depth) {
		// The step row stays pending and is eligible for re-publication by a
		// retry or manual intervention.
		p.metrics.PublishRejected()
		p.logger.WarnContext(ctx, "Backpressure rejected publication",
			"execution_id", req.ExecutionID,
			"node_id", req.Node.ID,
			"depth", stats.Depth,
		)

		return step.ID, nil
	}

	job := &models.WorkerJob{
		ID:              step.ID,
		ExecutionID:     req.ExecutionID,
		WorkflowID:      req.WorkflowID,
		Node:            req.Node,
		Input:           req.Input,
		PreviousResults: req.PreviousResults,
		UpstreamResults: req.UpstreamResults,
		Attempt:         req.Attempt,
		Retry:           retry,
	}

	if err := p.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", step.ID, err)
	}

	p.metrics.JobPublished()

	return step.ID, nil
}

// PublishMany sequences individual Publish calls.
func (p *Publisher) PublishMany(ctx context.Context, reqs []Request) ([]string, error) {
	stepIDs := make([]string, 0, len(reqs))

	for _, req := range reqs {
		stepID, err := p.Publish(ctx, req)
		if err != nil {
			return stepIDs, err
		}

		stepIDs = append(stepIDs, stepID)
	}

	return stepIDs, nil
}
