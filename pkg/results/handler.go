// Package results advances the DAG as worker results arrive: step
// finalization, conditional branch skipping, join barriers and execution
// completion.
package results

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
	"github.com/SoumadeepCh/FlowSync/pkg/publisher"
)

type Handler struct {
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	steps      persistence.StepRepository
	publisher  *publisher.Publisher
	bus        eventbus.EventBus
	metrics    *observability.Metrics
	audit      *observability.AuditLogger
	logger     *slog.Logger
}

func NewHandler(
	store persistence.Persistence,
	pub *publisher.Publisher,
	bus eventbus.EventBus,
	metrics *observability.Metrics,
	audit *observability.AuditLogger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		workflows:  store.Workflows(),
		executions: store.Executions(),
		steps:      store.Steps(),
		publisher:  pub,
		bus:        bus,
		metrics:    metrics,
		audit:      audit,
		logger:     logger.With("module", "result_handler"),
	}
}

// Handle persists the step outcome and re-plans the DAG. Results arriving
// for an execution that is no longer running are recorded but do not
// advance anything (cancellation is not preemptive).
func (h *Handler) Handle(ctx context.Context, result *models.WorkerResult) error {
	logger := h.logger.With(
		"execution_id", result.ExecutionID,
		"node_id", result.NodeID,
		"step_id", result.StepID,
	)

	if err := h.finalizeStep(ctx, result); err != nil {
		return err
	}

	execution, err := h.executions.GetByID(ctx, result.ExecutionID)
	if err != nil {
		return fmt.Errorf("failed to load execution %s: %w", result.ExecutionID, err)
	}

	if execution.Status != models.ExecutionStatusRunning {
		logger.InfoContext(ctx, "Result for non-running execution recorded only",
			"execution_status", execution.Status)

		return nil
	}

	if result.Status == models.ResultStatusFailed {
		return h.failExecution(ctx, execution, result)
	}

	return h.advance(ctx, execution, result)
}

func (h *Handler) finalizeStep(ctx context.Context, result *models.WorkerResult) error {
	step, err := h.steps.GetByID(ctx, result.StepID)
	if err != nil {
		return fmt.Errorf("failed to load step %s: %w", result.StepID, err)
	}

	now := time.Now()
	step.Result = result.Result
	step.Error = result.Error
	step.CompletedAt = &now

	if result.Status == models.ResultStatusCompleted {
		step.Status = models.StepStatusCompleted
		h.metrics.StepCompleted(string(result.NodeType), result.DurationMs)
	} else {
		step.Status = models.StepStatusFailed
		h.metrics.StepFailed(string(result.NodeType), result.DurationMs)
	}

	if err := h.steps.Update(ctx, step); err != nil {
		return fmt.Errorf("failed to finalize step %s: %w", result.StepID, err)
	}

	return nil
}

// failExecution marks the execution failed, sweeps the remaining unsettled
// steps to skipped and emits the one-shot completion signal.
func (h *Handler) failExecution(ctx context.Context, execution *models.Execution, result *models.WorkerResult) error {
	now := time.Now()
	execution.Status = models.ExecutionStatusFailed
	execution.Error = result.Error
	execution.CompletedAt = &now

	if err := h.executions.Update(ctx, execution); err != nil {
		return fmt.Errorf("failed to mark execution %s failed: %w", execution.ID, err)
	}

	swept, err := h.steps.SweepUnsettled(ctx, execution.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to sweep unsettled steps", "execution_id", execution.ID, "error", err)
	}

	h.metrics.ExecutionFailed()
	h.audit.Record(ctx, observability.AuditExecutionFailed, "execution", execution.ID, map[string]any{
		"error":         result.Error,
		"failed_node":   result.NodeID,
		"steps_skipped": swept,
	})

	event := events.ExecutionFailed{
		BaseEvent: events.BaseEvent{
			ID:         h.bus.GenerateID(),
			Type:       events.ExecutionFailedEvent,
			Timestamp:  now,
			WorkflowID: execution.WorkflowID,
		},
		ExecutionID: execution.ID,
		Error:       result.Error,
	}

	if err := h.bus.Publish(ctx, "done:"+execution.ID, event); err != nil {
		h.logger.ErrorContext(ctx, "Failed to publish failure signal", "execution_id", execution.ID, "error", err)
	}

	return nil
}

// executionState is the per-advance view of the DAG.
type executionState struct {
	definition      *models.WorkflowDefinition
	stepsByNode     map[string][]*models.StepExecution
	previousResults map[string]any
}

func (s *executionState) settled(nodeID string) bool {
	for _, step := range s.stepsByNode[nodeID] {
		if step.Status.Settled() {
			return true
		}
	}

	return false
}

// scheduled reports whether the node already carries a step that is active
// or settled; only terminally failed rows allow re-scheduling.
func (s *executionState) scheduled(nodeID string) bool {
	for _, step := range s.stepsByNode[nodeID] {
		if step.Status != models.StepStatusFailed {
			return true
		}
	}

	return false
}

func (h *Handler) loadState(ctx context.Context, execution *models.Execution) (*executionState, error) {
	workflow, err := h.workflows.GetByIDVersion(ctx, execution.WorkflowID, execution.WorkflowVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s v%d: %w", execution.WorkflowID, execution.WorkflowVersion, err)
	}

	steps, err := h.steps.ListByExecution(ctx, execution.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps of execution %s: %w", execution.ID, err)
	}

	state := &executionState{
		definition:      &workflow.Definition,
		stepsByNode:     make(map[string][]*models.StepExecution),
		previousResults: make(map[string]any),
	}

	for _, step := range steps {
		state.stepsByNode[step.NodeID] = append(state.stepsByNode[step.NodeID], step)

		if step.Status == models.StepStatusCompleted {
			state.previousResults[step.NodeID] = step.Result
		}
	}

	return state, nil
}

func (h *Handler) advance(ctx context.Context, execution *models.Execution, result *models.WorkerResult) error {
	state, err := h.loadState(ctx, execution)
	if err != nil {
		return err
	}

	node, ok := state.definition.NodeByID(result.NodeID)
	if !ok {
		return fmt.Errorf("node %s not in workflow %s v%d", result.NodeID, execution.WorkflowID, execution.WorkflowVersion)
	}

	outgoing := state.definition.OutgoingEdges(result.NodeID)

	for _, edge := range h.droppedEdges(node, result, outgoing) {
		h.skipDownstream(ctx, execution.ID, state, edge.Target)
	}

	ready := h.readyNodes(state)

	for _, readyNode := range ready {
		req := publisher.Request{
			ExecutionID:     execution.ID,
			WorkflowID:      execution.WorkflowID,
			Node:            readyNode,
			Input:           execution.Input,
			PreviousResults: state.previousResults,
			UpstreamResults: h.upstreamResults(state, readyNode.ID),
			Attempt:         1,
		}

		if _, err := h.publisher.Publish(ctx, req); err != nil {
			h.logger.ErrorContext(ctx, "Failed to publish ready node",
				"execution_id", execution.ID,
				"node_id", readyNode.ID,
				"error", err,
			)
		}
	}

	if len(ready) == 0 {
		return h.maybeComplete(ctx, execution, state)
	}

	return nil
}

// droppedEdges applies conditional routing. For a condition node the
// "result" field selects the branch; edges carrying the other branch label
// are dropped. Unlabelled edges always follow.
func (h *Handler) droppedEdges(node *models.Node, result *models.WorkerResult, outgoing []models.Edge) []models.Edge {
	if node.Type != models.NodeTypeCondition {
		return nil
	}

	branch := "false"
	if value, ok := result.Result["result"].(bool); ok && value {
		branch = "true"
	}

	var dropped []models.Edge

	for _, edge := range outgoing {
		if edge.ConditionBranch != "" && edge.ConditionBranch != branch {
			dropped = append(dropped, edge)
		}
	}

	return dropped
}

// skipDownstream recursively records skipped steps for a deselected branch.
// The recursion stops at join nodes (they observe the skip through their
// in-edge accounting) and at nodes already scheduled or settled.
func (h *Handler) skipDownstream(ctx context.Context, executionID string, state *executionState, nodeID string) {
	node, ok := state.definition.NodeByID(nodeID)
	if !ok || node.Type == models.NodeTypeJoin {
		return
	}

	if state.scheduled(nodeID) {
		return
	}

	now := time.Now()
	step := &models.StepExecution{
		ID:          h.bus.GenerateID(),
		ExecutionID: executionID,
		NodeID:      node.ID,
		NodeLabel:   node.Label,
		NodeType:    node.Type,
		Status:      models.StepStatusSkipped,
		Attempts:    0,
		CompletedAt: &now,
	}

	if err := h.steps.Create(ctx, step); err != nil {
		h.logger.ErrorContext(ctx, "Failed to record skipped step", "node_id", node.ID, "error", err)

		return
	}

	state.stepsByNode[node.ID] = append(state.stepsByNode[node.ID], step)
	h.metrics.StepSkipped(string(node.Type))

	for _, edge := range state.definition.OutgoingEdges(node.ID) {
		h.skipDownstream(ctx, executionID, state, edge.Target)
	}
}

// readyNodes returns every unscheduled node with at least one in-edge whose
// sources have all settled. Join nodes follow the same rule: the barrier is
// "all in-edges settled".
func (h *Handler) readyNodes(state *executionState) []models.Node {
	var ready []models.Node

	for _, node := range state.definition.Nodes {
		incoming := state.definition.IncomingEdges(node.ID)
		if len(incoming) == 0 || state.scheduled(node.ID) {
			continue
		}

		eligible := true

		for _, edge := range incoming {
			if !state.settled(edge.Source) {
				eligible = false

				break
			}
		}

		if eligible {
			ready = append(ready, node)
		}
	}

	return ready
}

// upstreamResults collects the completed results feeding a node, keyed by
// source node ID. Skipped sources contribute nothing.
func (h *Handler) upstreamResults(state *executionState, nodeID string) map[string]any {
	upstream := make(map[string]any)

	for _, edge := range state.definition.IncomingEdges(nodeID) {
		if result, ok := state.previousResults[edge.Source]; ok {
			upstream[edge.Source] = result
		}
	}

	return upstream
}

// maybeComplete finishes the execution once nothing is runnable and nothing
// is in flight.
func (h *Handler) maybeComplete(ctx context.Context, execution *models.Execution, state *executionState) error {
	steps, err := h.steps.ListByExecution(ctx, execution.ID)
	if err != nil {
		return fmt.Errorf("failed to re-list steps of execution %s: %w", execution.ID, err)
	}

	for _, step := range steps {
		if step.Status == models.StepStatusPending || step.Status == models.StepStatusRunning {
			return nil
		}
	}

	now := time.Now()
	execution.Status = models.ExecutionStatusCompleted
	execution.Output = state.previousResults
	execution.CompletedAt = &now

	if err := h.executions.Update(ctx, execution); err != nil {
		return fmt.Errorf("failed to complete execution %s: %w", execution.ID, err)
	}

	h.metrics.ExecutionCompleted()
	h.audit.Record(ctx, observability.AuditExecutionCompleted, "execution", execution.ID, map[string]any{
		"steps": len(steps),
	})

	event := events.ExecutionCompleted{
		BaseEvent: events.BaseEvent{
			ID:         h.bus.GenerateID(),
			Type:       events.ExecutionCompletedEvent,
			Timestamp:  now,
			WorkflowID: execution.WorkflowID,
		},
		ExecutionID: execution.ID,
		Output:      execution.Output,
	}

	if err := h.bus.Publish(ctx, "done:"+execution.ID, event); err != nil {
		h.logger.ErrorContext(ctx, "Failed to publish completion signal", "execution_id", execution.ID, "error", err)
	}

	return nil
}
