// Package end implements the end node handler.
package end

import (
	"context"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Type() models.NodeType {
	return models.NodeTypeEnd
}

// Execute completes immediately and marks the lineage terminal for its
// branch.
func (h *Handler) Execute(_ context.Context, _ *models.WorkerJob) (map[string]any, error) {
	return map[string]any{
		"message": "Workflow branch completed",
	}, nil
}
