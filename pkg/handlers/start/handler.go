// Package start implements the start node handler.
package start

import (
	"context"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Type() models.NodeType {
	return models.NodeTypeStart
}

// Execute completes immediately, echoing the workflow input so downstream
// nodes can reference it through the start node's result as well.
func (h *Handler) Execute(_ context.Context, job *models.WorkerJob) (map[string]any, error) {
	return map[string]any{
		"message": "Workflow started",
		"input":   job.Input,
	}, nil
}
