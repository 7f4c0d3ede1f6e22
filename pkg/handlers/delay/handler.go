// Package delay implements the delay node handler.
package delay

import (
	"context"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/protocol"
)

// MaxDelayMs caps config["delayMs"]; longer waits belong in a cron trigger.
const MaxDelayMs = 300_000

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Type() models.NodeType {
	return models.NodeTypeDelay
}

// Execute sleeps for min(delayMs, MaxDelayMs), or until the absolute
// config["scheduledTime"] (RFC 3339). Cancellation interrupts the wait.
func (h *Handler) Execute(ctx context.Context, job *models.WorkerJob) (map[string]any, error) {
	wait, err := h.waitDuration(job.Node.Config)
	if err != nil {
		return nil, protocol.NewHandlerError(err, false)
	}

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return map[string]any{
		"delayedMs": wait.Milliseconds(),
	}, nil
}

func (h *Handler) waitDuration(config map[string]any) (time.Duration, error) {
	if scheduled, ok := config["scheduledTime"].(string); ok && scheduled != "" {
		at, err := time.Parse(time.RFC3339, scheduled)
		if err != nil {
			return 0, err
		}

		wait := time.Until(at)
		if wait < 0 {
			wait = 0
		}

		return wait, nil
	}

	delayMs := 0

	switch v := config["delayMs"].(type) {
	case float64:
		delayMs = int(v)
	case int:
		delayMs = v
	}

	if delayMs < 0 {
		delayMs = 0
	}

	if delayMs > MaxDelayMs {
		delayMs = MaxDelayMs
	}

	return time.Duration(delayMs) * time.Millisecond, nil
}
