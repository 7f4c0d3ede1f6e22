package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
)

type WorkflowRepository struct {
	db *sql.DB
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	definition, err := json.Marshal(workflow.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow definition: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflows (id, version, name, description, status, definition, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id, version) DO UPDATE SET
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			status      = EXCLUDED.status,
			definition  = EXCLUDED.definition,
			updated_at  = EXCLUDED.updated_at
	`, workflow.ID, workflow.Version, workflow.Name, workflow.Description,
		string(workflow.Status), definition, workflow.Owner, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s v%d: %w", workflow.ID, workflow.Version, err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, version, name, description, status, definition, owner, created_at, updated_at
		FROM workflows
		WHERE id = $1
		ORDER BY version DESC
		LIMIT 1
	`, id)

	return scanWorkflow(row)
}

func (r *WorkflowRepository) GetByIDVersion(ctx context.Context, id string, version int) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, version, name, description, status, definition, owner, created_at, updated_at
		FROM workflows
		WHERE id = $1 AND version = $2
	`, id, version)

	return scanWorkflow(row)
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (id)
			id, version, name, description, status, definition, owner, created_at, updated_at
		FROM workflows
		ORDER BY id, version DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Workflow

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, workflow)
	}

	return out, rows.Err()
}

// Delete removes every version; executions and steps cascade through the
// executions delete.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM executions WHERE workflow_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete executions of workflow %s: %w", id, err)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow   models.Workflow
		status     string
		definition []byte
	)

	err := row.Scan(&workflow.ID, &workflow.Version, &workflow.Name, &workflow.Description,
		&status, &definition, &workflow.Owner, &workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	workflow.Status = models.WorkflowStatus(status)

	if err := json.Unmarshal(definition, &workflow.Definition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow definition: %w", err)
	}

	return &workflow, nil
}
