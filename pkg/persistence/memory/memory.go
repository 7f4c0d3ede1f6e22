// Package memory provides the in-memory persistence implementation used by
// tests and single-process development runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
)

type Persistence struct {
	workflows  *WorkflowRepository
	executions *ExecutionRepository
	steps      *StepRepository
	triggers   *TriggerRepository
	audit      *AuditRepository
}

func NewPersistence() *Persistence {
	store := &Persistence{
		workflows:  &WorkflowRepository{byID: make(map[string][]*models.Workflow)},
		executions: &ExecutionRepository{byID: make(map[string]*models.Execution)},
		steps:      &StepRepository{byID: make(map[string]*models.StepExecution)},
		triggers:   &TriggerRepository{byID: make(map[string]*models.Trigger)},
		audit:      &AuditRepository{},
	}

	store.workflows.parent = store

	return store
}

func (p *Persistence) Workflows() persistence.WorkflowRepository   { return p.workflows }
func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executions }
func (p *Persistence) Steps() persistence.StepRepository           { return p.steps }
func (p *Persistence) Triggers() persistence.TriggerRepository     { return p.triggers }
func (p *Persistence) Audit() persistence.AuditRepository          { return p.audit }

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }
func (p *Persistence) Close(_ context.Context) error       { return nil }

// WorkflowRepository keeps every version of every workflow, newest last.
type WorkflowRepository struct {
	mu     sync.RWMutex
	byID   map[string][]*models.Workflow
	parent *Persistence
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *workflow

	versions := r.byID[workflow.ID]
	for i, existing := range versions {
		if existing.Version == workflow.Version {
			versions[i] = &copied

			return nil
		}
	}

	r.byID[workflow.ID] = append(versions, &copied)

	return nil
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.byID[id]
	if len(versions) == 0 {
		return nil, persistence.ErrWorkflowNotFound
	}

	latest := versions[0]
	for _, candidate := range versions[1:] {
		if candidate.Version > latest.Version {
			latest = candidate
		}
	}

	copied := *latest

	return &copied, nil
}

func (r *WorkflowRepository) GetByIDVersion(_ context.Context, id string, version int) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, candidate := range r.byID[id] {
		if candidate.Version == version {
			copied := *candidate

			return &copied, nil
		}
	}

	return nil, persistence.ErrWorkflowNotFound
}

func (r *WorkflowRepository) List(_ context.Context) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Workflow, 0, len(r.byID))

	for _, versions := range r.byID {
		latest := versions[0]
		for _, candidate := range versions[1:] {
			if candidate.Version > latest.Version {
				latest = candidate
			}
		}

		copied := *latest
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

// Delete removes every version and cascades to the workflow's executions
// and their steps.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()

	if _, ok := r.byID[id]; !ok {
		r.mu.Unlock()

		return persistence.ErrWorkflowNotFound
	}

	delete(r.byID, id)
	r.mu.Unlock()

	executions, err := r.parent.executions.ListByWorkflow(ctx, id)
	if err != nil {
		return err
	}

	for _, execution := range executions {
		r.parent.executions.delete(execution.ID)
		r.parent.steps.deleteByExecution(execution.ID)
	}

	return nil
}

type ExecutionRepository struct {
	mu   sync.RWMutex
	byID map[string]*models.Execution
}

func (r *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *execution
	r.byID[execution.ID] = &copied

	return nil
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	execution, ok := r.byID[id]
	if !ok {
		return nil, persistence.ErrExecutionNotFound
	}

	copied := *execution

	return &copied, nil
}

func (r *ExecutionRepository) Update(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[execution.ID]; !ok {
		return persistence.ErrExecutionNotFound
	}

	copied := *execution
	r.byID[execution.ID] = &copied

	return nil
}

func (r *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Execution

	for _, execution := range r.byID {
		if execution.WorkflowID == workflowID {
			copied := *execution
			out = append(out, &copied)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (r *ExecutionRepository) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, id)
}

type StepRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.StepExecution
	order []string
}

func (r *StepRepository) Create(_ context.Context, step *models.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *step
	r.byID[step.ID] = &copied
	r.order = append(r.order, step.ID)

	return nil
}

func (r *StepRepository) GetByID(_ context.Context, id string) (*models.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, ok := r.byID[id]
	if !ok {
		return nil, persistence.ErrStepNotFound
	}

	copied := *step

	return &copied, nil
}

func (r *StepRepository) Update(_ context.Context, step *models.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[step.ID]; !ok {
		return persistence.ErrStepNotFound
	}

	copied := *step
	r.byID[step.ID] = &copied

	return nil
}

func (r *StepRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return persistence.ErrStepNotFound
	}

	delete(r.byID, id)

	return nil
}

func (r *StepRepository) ListByExecution(_ context.Context, executionID string) ([]*models.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.StepExecution

	for _, id := range r.order {
		step, ok := r.byID[id]
		if !ok || step.ExecutionID != executionID {
			continue
		}

		copied := *step
		out = append(out, &copied)
	}

	return out, nil
}

func (r *StepRepository) SweepUnsettled(_ context.Context, executionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	swept := 0

	for _, step := range r.byID {
		if step.ExecutionID != executionID {
			continue
		}

		if step.Status == models.StepStatusPending || step.Status == models.StepStatusRunning {
			step.Status = models.StepStatusSkipped

			swept++
		}
	}

	return swept, nil
}

func (r *StepRepository) deleteByExecution(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, step := range r.byID {
		if step.ExecutionID == executionID {
			delete(r.byID, id)
		}
	}
}

type TriggerRepository struct {
	mu   sync.RWMutex
	byID map[string]*models.Trigger
}

func (r *TriggerRepository) Save(_ context.Context, trigger *models.Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *trigger
	r.byID[trigger.ID] = &copied

	return nil
}

func (r *TriggerRepository) GetByID(_ context.Context, id string) (*models.Trigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trigger, ok := r.byID[id]
	if !ok {
		return nil, persistence.ErrTriggerNotFound
	}

	copied := *trigger

	return &copied, nil
}

func (r *TriggerRepository) ListByType(_ context.Context, triggerType models.TriggerType, enabledOnly bool) ([]*models.Trigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Trigger

	for _, trigger := range r.byID {
		if trigger.Type != triggerType {
			continue
		}

		if enabledOnly && !trigger.Enabled {
			continue
		}

		copied := *trigger
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *TriggerRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return persistence.ErrTriggerNotFound
	}

	delete(r.byID, id)

	return nil
}

type AuditRepository struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
}

func (r *AuditRepository) Append(_ context.Context, entry *models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *entry
	r.entries = append(r.entries, &copied)

	return nil
}

func (r *AuditRepository) List(_ context.Context, limit int) ([]*models.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.AuditEntry, 0, len(r.entries))

	for i := len(r.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		copied := *r.entries[i]
		out = append(out, &copied)
	}

	return out, nil
}
