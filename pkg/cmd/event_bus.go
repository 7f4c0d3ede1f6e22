package cmd

import (
	"log/slog"

	"github.com/SoumadeepCh/FlowSync/pkg/eventbus"
	"github.com/ThreeDotsLabs/watermill"
)

// NewEventBus builds the process-local bus the engine's signals ride on.
func NewEventBus(logger *slog.Logger) eventbus.EventBus {
	return eventbus.NewInProcessBus(watermill.NewSlogLogger(logger))
}
