package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultLogBufferSize = 500

// LogEntry is one captured log record.
type LogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// ring is the storage shared by a LogBuffer and every handler derived from
// it via WithAttrs/WithGroup.
type ring struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

func (r *ring) append(entry LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = entry
	r.next = (r.next + 1) % len(r.entries)

	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) snapshot() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]LogEntry, r.next)
		copy(out, r.entries[:r.next])

		return out
	}

	out := make([]LogEntry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)

	return out
}

// LogBuffer is a fixed-size ring of recent log entries. It implements
// slog.Handler so it can tee off the process logger.
type LogBuffer struct {
	ring  *ring
	inner slog.Handler
	attrs []slog.Attr
}

func NewLogBuffer(size int, inner slog.Handler) *LogBuffer {
	if size <= 0 {
		size = DefaultLogBufferSize
	}

	return &LogBuffer{
		ring:  &ring{entries: make([]LogEntry, size)},
		inner: inner,
	}
}

func (b *LogBuffer) Enabled(ctx context.Context, level slog.Level) bool {
	if b.inner != nil {
		return b.inner.Enabled(ctx, level)
	}

	return true
}

func (b *LogBuffer) Handle(ctx context.Context, record slog.Record) error {
	attrs := make(map[string]any, record.NumAttrs()+len(b.attrs))

	for _, attr := range b.attrs {
		attrs[attr.Key] = attr.Value.Any()
	}

	record.Attrs(func(attr slog.Attr) bool {
		attrs[attr.Key] = attr.Value.Any()

		return true
	})

	b.ring.append(LogEntry{
		Time:    record.Time,
		Level:   record.Level.String(),
		Message: record.Message,
		Attrs:   attrs,
	})

	if b.inner != nil {
		return b.inner.Handle(ctx, record)
	}

	return nil
}

func (b *LogBuffer) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &LogBuffer{
		ring:  b.ring,
		inner: b.inner,
		attrs: append(append([]slog.Attr{}, b.attrs...), attrs...),
	}

	if b.inner != nil {
		clone.inner = b.inner.WithAttrs(attrs)
	}

	return clone
}

func (b *LogBuffer) WithGroup(name string) slog.Handler {
	clone := &LogBuffer{
		ring:  b.ring,
		inner: b.inner,
		attrs: b.attrs,
	}

	if b.inner != nil {
		clone.inner = b.inner.WithGroup(name)
	}

	return clone
}

// Entries returns the buffered records, oldest first.
func (b *LogBuffer) Entries() []LogEntry {
	return b.ring.snapshot()
}
