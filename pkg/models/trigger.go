package models

import "time"

// TriggerType represents how a workflow run is initiated.
type TriggerType string

const (
	TriggerTypeManual  TriggerType = "manual"
	TriggerTypeWebhook TriggerType = "webhook"
	TriggerTypeCron    TriggerType = "cron"
)

// Trigger references (does not own) a workflow. Cron triggers require
// config["expression"]; webhook and manual triggers never fire from the
// scheduler.
type Trigger struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id" validate:"required"`
	Type        TriggerType    `json:"type"        validate:"required"`
	Config      map[string]any `json:"config"`
	Enabled     bool           `json:"enabled"`
	LastFiredAt *time.Time     `json:"last_fired_at,omitempty"`
	NextRunAt   *time.Time     `json:"next_run_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CronExpression returns config["expression"] for cron triggers.
func (t *Trigger) CronExpression() string {
	expr, _ := t.Config["expression"].(string)

	return expr
}
