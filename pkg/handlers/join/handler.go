// Package join implements the join barrier node handler.
package join

import (
	"context"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Type() models.NodeType {
	return models.NodeTypeJoin
}

// Execute merges the upstream branch results. The barrier itself is
// enforced upstream: the result handler only schedules a join once every
// in-edge source is completed or skipped.
func (h *Handler) Execute(_ context.Context, job *models.WorkerJob) (map[string]any, error) {
	merged := make(map[string]any, len(job.UpstreamResults))
	for nodeID, result := range job.UpstreamResults {
		merged[nodeID] = result
	}

	return map[string]any{
		"mergedResults": merged,
		"branchCount":   len(merged),
	}, nil
}
