// Package webhookresponse implements the webhook_response node handler.
package webhookresponse

import (
	"context"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Type() models.NodeType {
	return models.NodeTypeWebhookResponse
}

// Execute builds the response body from config["responseFields"] (node IDs
// to project) or, when absent, from all previous results. With
// config["includeMetadata"], a "_metadata" block is added.
func (h *Handler) Execute(_ context.Context, job *models.WorkerJob) (map[string]any, error) {
	body := make(map[string]any)

	if fields, ok := job.Node.Config["responseFields"].([]any); ok {
		for _, field := range fields {
			if name, ok := field.(string); ok {
				if value, exists := job.PreviousResults[name]; exists {
					body[name] = value
				}
			}
		}
	} else {
		for nodeID, result := range job.PreviousResults {
			body[nodeID] = result
		}
	}

	if include, _ := job.Node.Config["includeMetadata"].(bool); include {
		body["_metadata"] = map[string]any{
			"executionId": job.ExecutionID,
			"workflowId":  job.WorkflowID,
			"respondedAt": time.Now().UTC().Format(time.RFC3339),
		}
	}

	return body, nil
}
