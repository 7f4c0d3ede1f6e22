// Package condition implements the conditional branching node handler.
package condition

import (
	"context"

	"github.com/SoumadeepCh/FlowSync/pkg/expression"
	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Type() models.NodeType {
	return models.NodeTypeCondition
}

// Execute evaluates config["expression"] against the workflow input and the
// previous step results. The "result" field drives edge routing downstream.
func (h *Handler) Execute(_ context.Context, job *models.WorkerJob) (map[string]any, error) {
	expr, _ := job.Node.Config["expression"].(string)

	scope := expression.Scope{
		Input:   job.Input,
		Results: job.PreviousResults,
	}

	return map[string]any{
		"result":     expression.EvaluateCondition(expr, scope),
		"expression": expr,
	}, nil
}
