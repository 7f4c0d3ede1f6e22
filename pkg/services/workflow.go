package services

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/dag"
	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/observability"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Workflow struct {
	workflows persistence.WorkflowRepository
	validator *validator.Validate
	audit     *observability.AuditLogger
	logger    *slog.Logger
}

func NewWorkflow(store persistence.Persistence, validate *validator.Validate, audit *observability.AuditLogger, logger *slog.Logger) *Workflow {
	return &Workflow{
		workflows: store.Workflows(),
		validator: validate,
		audit:     audit,
		logger:    logger.With("module", "workflow_service"),
	}
}

// Create validates the definition and stores it as a draft version 1
// snapshot.
func (s *Workflow) Create(ctx context.Context, name, description string, definition models.WorkflowDefinition, owner string) (*models.Workflow, error) {
	now := time.Now()
	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Version:     1,
		Name:        name,
		Description: description,
		Status:      models.WorkflowStatusDraft,
		Definition:  definition,
		Owner:       owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.validate(workflow); err != nil {
		return nil, err
	}

	if err := s.workflows.Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	s.audit.Record(ctx, observability.AuditWorkflowCreated, "workflow", workflow.ID, map[string]any{
		"name":    name,
		"version": workflow.Version,
	})

	return workflow, nil
}

// Update stores a new frozen snapshot with a bumped version whenever the
// definition or the name changes. Executions referencing older versions are
// untouched. A call that changes nothing returns the current snapshot
// without minting a new version.
func (s *Workflow) Update(ctx context.Context, id, name string, definition models.WorkflowDefinition) (*models.Workflow, error) {
	current, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name == current.Name && reflect.DeepEqual(definition, current.Definition) {
		return current, nil
	}

	next := *current
	next.Version = current.Version + 1
	next.Name = name
	next.Definition = definition
	next.UpdatedAt = time.Now()

	if err := s.validate(&next); err != nil {
		return nil, err
	}

	if err := s.workflows.Save(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to save workflow version %d: %w", next.Version, err)
	}

	return &next, nil
}

// Activate makes the latest version executable.
func (s *Workflow) Activate(ctx context.Context, id string) (*models.Workflow, error) {
	return s.transition(ctx, id, models.WorkflowStatusActive, observability.AuditWorkflowActivated)
}

// Archive retires the workflow; running executions keep their snapshot.
func (s *Workflow) Archive(ctx context.Context, id string) (*models.Workflow, error) {
	return s.transition(ctx, id, models.WorkflowStatusArchived, observability.AuditWorkflowArchived)
}

func (s *Workflow) transition(ctx context.Context, id string, status models.WorkflowStatus, auditEvent string) (*models.Workflow, error) {
	workflow, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.Status = status
	workflow.UpdatedAt = time.Now()

	if err := s.workflows.Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow status: %w", err)
	}

	s.audit.Record(ctx, auditEvent, "workflow", workflow.ID, map[string]any{
		"version": workflow.Version,
	})

	return workflow, nil
}

func (s *Workflow) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return s.workflows.GetByID(ctx, id)
}

func (s *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.workflows.List(ctx)
}

func (s *Workflow) validate(workflow *models.Workflow) error {
	if err := s.validator.Struct(workflow); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	result := dag.Validate(&workflow.Definition)
	if !result.OK {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(result.Errors, "; "))
	}

	return nil
}
