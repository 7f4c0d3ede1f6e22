package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
)

type TriggerRepository struct {
	db *sql.DB
}

func (r *TriggerRepository) Save(ctx context.Context, trigger *models.Trigger) error {
	config, err := marshalMap(trigger.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO triggers (id, workflow_id, type, config, enabled, last_fired_at, next_run_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id   = EXCLUDED.workflow_id,
			type          = EXCLUDED.type,
			config        = EXCLUDED.config,
			enabled       = EXCLUDED.enabled,
			last_fired_at = EXCLUDED.last_fired_at,
			next_run_at   = EXCLUDED.next_run_at
	`, trigger.ID, trigger.WorkflowID, string(trigger.Type), config,
		trigger.Enabled, trigger.LastFiredAt, trigger.NextRunAt, trigger.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save trigger %s: %w", trigger.ID, err)
	}

	return nil
}

func (r *TriggerRepository) GetByID(ctx context.Context, id string) (*models.Trigger, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, type, config, enabled, last_fired_at, next_run_at, created_at
		FROM triggers
		WHERE id = $1
	`, id)

	trigger, err := scanTrigger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTriggerNotFound
		}

		return nil, err
	}

	return trigger, nil
}

func (r *TriggerRepository) ListByType(ctx context.Context, triggerType models.TriggerType, enabledOnly bool) ([]*models.Trigger, error) {
	query := `
		SELECT id, workflow_id, type, config, enabled, last_fired_at, next_run_at, created_at
		FROM triggers
		WHERE type = $1
	`
	if enabledOnly {
		query += " AND enabled = true"
	}

	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, string(triggerType))
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Trigger

	for rows.Next() {
		trigger, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, trigger)
	}

	return out, rows.Err()
}

func (r *TriggerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM triggers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trigger %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return persistence.ErrTriggerNotFound
	}

	return nil
}

func scanTrigger(row rowScanner) (*models.Trigger, error) {
	var (
		trigger     models.Trigger
		triggerType string
		config      []byte
	)

	err := row.Scan(&trigger.ID, &trigger.WorkflowID, &triggerType, &config,
		&trigger.Enabled, &trigger.LastFiredAt, &trigger.NextRunAt, &trigger.CreatedAt)
	if err != nil {
		return nil, err
	}

	trigger.Type = models.TriggerType(triggerType)

	if trigger.Config, err = unmarshalMap(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
	}

	return &trigger, nil
}

type AuditRepository struct {
	db *sql.DB
}

func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	metadata, err := marshalMap(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, event, entity_type, entity_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.Event, entry.EntityType, entry.EntityID, metadata, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

func (r *AuditRepository) List(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event, entity_type, entity_id, metadata, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.AuditEntry

	for rows.Next() {
		var (
			entry    models.AuditEntry
			metadata []byte
		)

		err := rows.Scan(&entry.ID, &entry.Event, &entry.EntityType, &entry.EntityID, &metadata, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}

		if entry.Metadata, err = unmarshalMap(metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
		}

		out = append(out, &entry)
	}

	return out, rows.Err()
}
