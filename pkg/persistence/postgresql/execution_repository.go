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

type ExecutionRepository struct {
	db *sql.DB
}

func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}

	return json.Marshal(m)
}

func unmarshalMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	return m, nil
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	input, err := marshalMap(execution.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal execution input: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO executions (id, workflow_id, workflow_version, status, input, error, user_id, started_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, execution.ID, execution.WorkflowID, execution.WorkflowVersion, string(execution.Status),
		input, execution.Error, execution.UserID, execution.StartedAt, execution.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create execution %s: %w", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, workflow_version, status, input, output, error, user_id, started_at, completed_at, created_at
		FROM executions
		WHERE id = $1
	`, id)

	var (
		execution models.Execution
		status    string
		input     []byte
		output    []byte
	)

	err := row.Scan(&execution.ID, &execution.WorkflowID, &execution.WorkflowVersion, &status,
		&input, &output, &execution.Error, &execution.UserID,
		&execution.StartedAt, &execution.CompletedAt, &execution.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution %s: %w", id, err)
	}

	execution.Status = models.ExecutionStatus(status)

	if execution.Input, err = unmarshalMap(input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution input: %w", err)
	}

	if execution.Output, err = unmarshalMap(output); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution output: %w", err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) Update(ctx context.Context, execution *models.Execution) error {
	output, err := marshalMap(execution.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal execution output: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE executions
		SET status = $2, output = $3, error = $4, started_at = $5, completed_at = $6
		WHERE id = $1
	`, execution.ID, string(execution.Status), output, execution.Error,
		execution.StartedAt, execution.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update execution %s: %w", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return persistence.ErrExecutionNotFound
	}

	return nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM executions WHERE workflow_id = $1 ORDER BY created_at
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions of workflow %s: %w", workflowID, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*models.Execution, 0, len(ids))

	for _, id := range ids {
		execution, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		out = append(out, execution)
	}

	return out, nil
}

type StepRepository struct {
	db *sql.DB
}

func (r *StepRepository) Create(ctx context.Context, step *models.StepExecution) error {
	result, err := marshalMap(step.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal step result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO step_executions (id, execution_id, node_id, node_label, node_type, status, attempts, result, error, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, step.ID, step.ExecutionID, step.NodeID, step.NodeLabel, string(step.NodeType),
		string(step.Status), step.Attempts, result, step.Error, step.StartedAt, step.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create step %s: %w", step.ID, err)
	}

	return nil
}

func (r *StepRepository) GetByID(ctx context.Context, id string) (*models.StepExecution, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, execution_id, node_id, node_label, node_type, status, attempts, result, error, started_at, completed_at
		FROM step_executions
		WHERE id = $1
	`, id)

	step, err := scanStep(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStepNotFound
		}

		return nil, err
	}

	return step, nil
}

func (r *StepRepository) Update(ctx context.Context, step *models.StepExecution) error {
	result, err := marshalMap(step.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal step result: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE step_executions
		SET status = $2, attempts = $3, result = $4, error = $5, started_at = $6, completed_at = $7
		WHERE id = $1
	`, step.ID, string(step.Status), step.Attempts, result, step.Error, step.StartedAt, step.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update step %s: %w", step.ID, err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return persistence.ErrStepNotFound
	}

	return nil
}

func (r *StepRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM step_executions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete step %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return persistence.ErrStepNotFound
	}

	return nil
}

func (r *StepRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.StepExecution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, execution_id, node_id, node_label, node_type, status, attempts, result, error, started_at, completed_at
		FROM step_executions
		WHERE execution_id = $1
		ORDER BY created_at
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps of execution %s: %w", executionID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.StepExecution

	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, step)
	}

	return out, rows.Err()
}

func (r *StepRepository) SweepUnsettled(ctx context.Context, executionID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE step_executions
		SET status = 'skipped'
		WHERE execution_id = $1 AND status IN ('pending', 'running')
	`, executionID)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep steps of execution %s: %w", executionID, err)
	}

	swept, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}

	return int(swept), nil
}

func scanStep(row rowScanner) (*models.StepExecution, error) {
	var (
		step     models.StepExecution
		nodeType string
		status   string
		result   []byte
	)

	err := row.Scan(&step.ID, &step.ExecutionID, &step.NodeID, &step.NodeLabel, &nodeType,
		&status, &step.Attempts, &result, &step.Error, &step.StartedAt, &step.CompletedAt)
	if err != nil {
		return nil, err
	}

	step.NodeType = models.NodeType(nodeType)
	step.Status = models.StepStatus(status)

	if step.Result, err = unmarshalMap(result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step result: %w", err)
	}

	return &step, nil
}
