package cmd

import (
	"log/slog"

	"github.com/SoumadeepCh/FlowSync/pkg/idempotency"
	redis "github.com/redis/go-redis/v9"
)

// NewIdempotencyStore uses Redis when a URL is configured (shared keys for
// horizontally scaled engines), otherwise the in-process TTL store.
func NewIdempotencyStore(redisURL string, logger *slog.Logger) (idempotency.Store, error) {
	if redisURL == "" {
		return idempotency.NewMemoryStore(logger), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return idempotency.NewRedisStore(redis.NewClient(opts)), nil
}
