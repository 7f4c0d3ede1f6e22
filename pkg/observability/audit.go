package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
	"github.com/google/uuid"
)

// Audit event names used across the engine.
const (
	AuditExecutionStarted   = "execution.started"
	AuditExecutionCompleted = "execution.completed"
	AuditExecutionFailed    = "execution.failed"
	AuditExecutionCancelled = "execution.cancelled"
	AuditTriggerFired       = "trigger.fired"
	AuditDLQEntry           = "dlq.entry"
	AuditWorkflowCreated    = "workflow.created"
	AuditWorkflowActivated  = "workflow.activated"
	AuditWorkflowArchived   = "workflow.archived"
)

// AuditLogger persists append-only audit rows. Writes are fire-and-forget:
// failures are logged, never propagated.
type AuditLogger struct {
	repo   persistence.AuditRepository
	logger *slog.Logger
}

func NewAuditLogger(repo persistence.AuditRepository, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		repo:   repo,
		logger: logger.With("module", "audit"),
	}
}

func (a *AuditLogger) Record(ctx context.Context, event, entityType, entityID string, metadata map[string]any) {
	if a.repo == nil {
		return
	}

	entry := &models.AuditEntry{
		ID:         uuid.New().String(),
		Event:      event,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}

	if err := a.repo.Append(ctx, entry); err != nil {
		a.logger.WarnContext(ctx, "Failed to append audit entry",
			"event", event,
			"entity_id", entityID,
			"error", err,
		)
	}
}
