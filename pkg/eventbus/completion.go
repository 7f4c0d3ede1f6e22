package eventbus

import (
	"context"
	"sync"

	"github.com/SoumadeepCh/FlowSync/pkg/events"
	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

// CompletionSignal is the one-shot payload delivered to whoever awaits a
// particular execution's terminal state.
type CompletionSignal struct {
	ExecutionID string
	Status      models.ExecutionStatus
	Output      map[string]any
	Error       string
}

// CompletionHub is effectively a promise keyed by execution ID: a waiter
// registers before the first job is enqueued, and the terminal bus event
// resolves it exactly once.
type CompletionHub struct {
	mu      sync.Mutex
	waiters map[string]chan CompletionSignal
}

func NewCompletionHub() *CompletionHub {
	return &CompletionHub{
		waiters: make(map[string]chan CompletionSignal),
	}
}

// Attach subscribes the hub to the bus's terminal execution events. Must be
// called before bus.Subscribe.
func (h *CompletionHub) Attach(bus EventBus) error {
	if err := bus.Handle(events.ExecutionCompletedEvent, h.onBusEvent); err != nil {
		return err
	}

	if err := bus.Handle(events.ExecutionFailedEvent, h.onBusEvent); err != nil {
		return err
	}

	return bus.Handle(events.ExecutionCancelledEvent, h.onBusEvent)
}

func (h *CompletionHub) onBusEvent(_ context.Context, event any) error {
	switch e := event.(type) {
	case *events.ExecutionCompleted:
		h.Resolve(CompletionSignal{
			ExecutionID: e.ExecutionID,
			Status:      models.ExecutionStatusCompleted,
			Output:      e.Output,
		})
	case *events.ExecutionFailed:
		h.Resolve(CompletionSignal{
			ExecutionID: e.ExecutionID,
			Status:      models.ExecutionStatusFailed,
			Error:       e.Error,
		})
	case *events.ExecutionCancelled:
		h.Resolve(CompletionSignal{
			ExecutionID: e.ExecutionID,
			Status:      models.ExecutionStatusCancelled,
		})
	}

	return nil
}

// Register returns the channel the execution's terminal signal will arrive
// on. The channel is buffered so Resolve never blocks.
func (h *CompletionHub) Register(executionID string) <-chan CompletionSignal {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.waiters[executionID]; ok {
		return existing
	}

	ch := make(chan CompletionSignal, 1)
	h.waiters[executionID] = ch

	return ch
}

// Resolve delivers the signal to the registered waiter, at most once per
// execution. Signals for unknown executions are dropped.
func (h *CompletionHub) Resolve(signal CompletionSignal) {
	h.mu.Lock()
	ch, ok := h.waiters[signal.ExecutionID]
	if ok {
		delete(h.waiters, signal.ExecutionID)
	}
	h.mu.Unlock()

	if ok {
		ch <- signal
	}
}

// Discard drops the waiter without delivering, e.g. after an orchestrator
// deadline.
func (h *CompletionHub) Discard(executionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.waiters, executionID)
}
