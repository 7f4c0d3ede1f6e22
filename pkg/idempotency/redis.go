package idempotency

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "flowsync:idem:"

// RedisStore shares idempotency keys between horizontally scaled engine
// processes. SET NX PX gives the same check-and-set semantics as the
// in-memory store, with Redis owning expiry.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) CheckAndSet(ctx context.Context, key, stepID string, ttl time.Duration) (Result, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	claimed, err := s.client.SetNX(ctx, redisKeyPrefix+key, stepID, ttl).Result()
	if err != nil {
		return Result{}, err
	}

	if claimed {
		return Result{Duplicate: false}, nil
	}

	existing, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired between SetNX and Get; treat as a fresh claim next call.
			return Result{Duplicate: true}, nil
		}

		return Result{}, err
	}

	return Result{Duplicate: true, ExistingStepID: existing}, nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
