package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	flowcron "github.com/SoumadeepCh/FlowSync/pkg/cron"
	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type Trigger struct {
	triggers  persistence.TriggerRepository
	workflows persistence.WorkflowRepository
	logger    *slog.Logger
}

func NewTrigger(store persistence.Persistence, logger *slog.Logger) *Trigger {
	return &Trigger{
		triggers:  store.Triggers(),
		workflows: store.Workflows(),
		logger:    logger.With("module", "trigger_service"),
	}
}

// Create validates and stores a trigger. Cron triggers must carry a parseable
// config["expression"]; the next run time is precomputed for observability.
func (s *Trigger) Create(ctx context.Context, workflowID string, triggerType models.TriggerType, config map[string]any) (*models.Trigger, error) {
	if _, err := s.workflows.GetByID(ctx, workflowID); err != nil {
		return nil, err
	}

	trigger := &models.Trigger{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Type:       triggerType,
		Config:     config,
		Enabled:    true,
		CreatedAt:  time.Now(),
	}

	switch triggerType {
	case models.TriggerTypeCron:
		expr := trigger.CronExpression()
		if expr == "" {
			return nil, fmt.Errorf("%w: cron trigger requires config.expression", ErrValidation)
		}

		if _, err := cron.ParseStandard(expr); err != nil {
			return nil, fmt.Errorf("%w: invalid cron expression: %s", ErrValidation, err.Error())
		}

		trigger.NextRunAt = flowcron.NextRunTime(expr, time.Now())
	case models.TriggerTypeWebhook, models.TriggerTypeManual:
		// No scheduler involvement; nothing to precompute.
	default:
		return nil, fmt.Errorf("%w: unknown trigger type %q", ErrValidation, triggerType)
	}

	if err := s.triggers.Save(ctx, trigger); err != nil {
		return nil, fmt.Errorf("failed to save trigger: %w", err)
	}

	return trigger, nil
}

func (s *Trigger) Get(ctx context.Context, id string) (*models.Trigger, error) {
	return s.triggers.GetByID(ctx, id)
}

func (s *Trigger) SetEnabled(ctx context.Context, id string, enabled bool) (*models.Trigger, error) {
	trigger, err := s.triggers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	trigger.Enabled = enabled

	if err := s.triggers.Save(ctx, trigger); err != nil {
		return nil, fmt.Errorf("failed to save trigger: %w", err)
	}

	return trigger, nil
}

func (s *Trigger) Delete(ctx context.Context, id string) error {
	return s.triggers.Delete(ctx, id)
}
