package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence/memory"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence/postgresql"
)

// NewPersistence selects the implementation by URL scheme. Anything that is
// not postgres falls back to the in-memory store (development only).
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		logger.Warn("No postgres database URL; using in-memory persistence", "database_url", databaseURL)

		return memory.NewPersistence(), nil
	}
}
