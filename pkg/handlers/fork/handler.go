// Package fork implements the fork node handler.
package fork

import (
	"context"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Type() models.NodeType {
	return models.NodeTypeFork
}

// Execute completes immediately, passing the input through. The fan-out is
// carried by the node's outgoing edges, not by the handler.
func (h *Handler) Execute(_ context.Context, job *models.WorkerJob) (map[string]any, error) {
	return map[string]any{
		"message": "Fork reached",
		"input":   job.Input,
	}, nil
}
