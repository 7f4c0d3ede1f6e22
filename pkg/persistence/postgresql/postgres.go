// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence/sqlbase"

	_ "github.com/lib/pq" // postgres driver
)

type Persistence struct {
	db         *sql.DB
	logger     *slog.Logger
	workflows  *WorkflowRepository
	executions *ExecutionRepository
	steps      *StepRepository
	triggers   *TriggerRepository
	audit      *AuditRepository
}

func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:         database,
		logger:     logger,
		workflows:  &WorkflowRepository{db: database},
		executions: &ExecutionRepository{db: database},
		steps:      &StepRepository{db: database},
		triggers:   &TriggerRepository{db: database},
		audit:      &AuditRepository{db: database},
	}, nil
}

// DB exposes the underlying handle so the job queue can share the
// connection pool.
func (p *Persistence) DB() *sql.DB {
	return p.db
}

func (p *Persistence) Workflows() persistence.WorkflowRepository   { return p.workflows }
func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executions }
func (p *Persistence) Steps() persistence.StepRepository           { return p.steps }
func (p *Persistence) Triggers() persistence.TriggerRepository     { return p.triggers }
func (p *Persistence) Audit() persistence.AuditRepository          { return p.audit }

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}
