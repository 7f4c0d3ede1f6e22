package idempotency

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "exec-1:node-a", Key("exec-1", "node-a"))
}

func TestCheckAndSet_RoundTrip(t *testing.T) {
	store := NewMemoryStore(slog.Default())
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	first, err := store.CheckAndSet(ctx, "k", "step-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := store.CheckAndSet(ctx, "k", "step-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, "step-1", second.ExistingStepID)

	require.NoError(t, store.Remove(ctx, "k"))

	third, err := store.CheckAndSet(ctx, "k", "step-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, third.Duplicate)
}

func TestCheckAndSet_ExpiredEntryIsReclaimable(t *testing.T) {
	store := NewMemoryStore(slog.Default())
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	_, err := store.CheckAndSet(ctx, "k", "step-1", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	result, err := store.CheckAndSet(ctx, "k", "step-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
}

func TestSweep_EvictsExpired(t *testing.T) {
	store := NewMemoryStore(slog.Default())
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	_, err := store.CheckAndSet(ctx, "old", "step-1", time.Millisecond)
	require.NoError(t, err)
	_, err = store.CheckAndSet(ctx, "live", "step-2", time.Minute)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	store.sweep(time.Now())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.NotContains(t, store.entries, "old")
	assert.Contains(t, store.entries, "live")
}
