// Package persistence provides the data storage abstraction for workflows,
// executions, steps, triggers and audit entries.
package persistence

import (
	"context"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

type Persistence interface {
	Workflows() WorkflowRepository
	Executions() ExecutionRepository
	Steps() StepRepository
	Triggers() TriggerRepository
	Audit() AuditRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores immutable (id, version) snapshots.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	// GetByID returns the latest version.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	GetByIDVersion(ctx context.Context, id string, version int) (*models.Workflow, error)
	List(ctx context.Context) ([]*models.Workflow, error)
	// Delete removes every version and cascades to executions and steps.
	Delete(ctx context.Context, id string) error
}

type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	Update(ctx context.Context, execution *models.Execution) error
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
}

type StepRepository interface {
	Create(ctx context.Context, step *models.StepExecution) error
	GetByID(ctx context.Context, id string) (*models.StepExecution, error)
	Update(ctx context.Context, step *models.StepExecution) error
	Delete(ctx context.Context, id string) error
	ListByExecution(ctx context.Context, executionID string) ([]*models.StepExecution, error)
	// SweepUnsettled marks the execution's pending and running steps as
	// skipped and returns how many were swept.
	SweepUnsettled(ctx context.Context, executionID string) (int, error)
}

type TriggerRepository interface {
	Save(ctx context.Context, trigger *models.Trigger) error
	GetByID(ctx context.Context, id string) (*models.Trigger, error)
	ListByType(ctx context.Context, triggerType models.TriggerType, enabledOnly bool) ([]*models.Trigger, error)
	Delete(ctx context.Context, id string) error
}

// AuditRepository is append-only.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, limit int) ([]*models.AuditEntry, error)
}
