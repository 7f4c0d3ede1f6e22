package observability

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer_CapturesRecords(t *testing.T) {
	buffer := NewLogBuffer(10, nil)
	logger := slog.New(buffer)

	logger.Info("hello", "k", "v")
	logger.Warn("careful")

	entries := buffer.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "v", entries[0].Attrs["k"])
	assert.Equal(t, "WARN", entries[1].Level)
}

func TestLogBuffer_RingWrapsOldestOut(t *testing.T) {
	buffer := NewLogBuffer(3, nil)
	logger := slog.New(buffer)

	for i := 0; i < 5; i++ {
		logger.Info(fmt.Sprintf("msg-%d", i))
	}

	entries := buffer.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "msg-2", entries[0].Message)
	assert.Equal(t, "msg-4", entries[2].Message)
}

func TestLogBuffer_DerivedHandlersShareRing(t *testing.T) {
	buffer := NewLogBuffer(10, nil)
	logger := slog.New(buffer).With("module", "queue")

	logger.Info("from derived")

	entries := buffer.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "queue", entries[0].Attrs["module"])
}
