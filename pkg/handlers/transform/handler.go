// Package transform implements the transform node handler.
package transform

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
	return models.NodeTypeTransform
}

// Execute builds the output by applying, in order: "mappings" (token ->
// resolved value), "pick" (copy keys from input), "rename" (rekey what has
// been built so far), "template" (interpolate {{$ref}} strings).
func (h *Handler) Execute(_ context.Context, job *models.WorkerJob) (map[string]any, error) {
	config := job.Node.Config
	scope := expression.Scope{
		Input:   job.Input,
		Results: job.PreviousResults,
	}

	output := make(map[string]any)

	if mappings, ok := config["mappings"].(map[string]any); ok {
		for key, token := range mappings {
			if tokenStr, ok := token.(string); ok {
				output[key] = expression.Resolve(tokenStr, scope)
			} else {
				output[key] = token
			}
		}
	}

	if pick, ok := config["pick"].([]any); ok {
		for _, key := range pick {
			if keyStr, ok := key.(string); ok {
				if value, exists := job.Input[keyStr]; exists {
					output[keyStr] = value
				}
			}
		}
	}

	if rename, ok := config["rename"].(map[string]any); ok {
		for oldKey, newKey := range rename {
			newKeyStr, ok := newKey.(string)
			if !ok {
				continue
			}

			if value, exists := output[oldKey]; exists {
				delete(output, oldKey)
				output[newKeyStr] = value
			}
		}
	}

	if templates, ok := config["template"].(map[string]any); ok {
		for key, tmpl := range templates {
			if tmplStr, ok := tmpl.(string); ok {
				output[key] = expression.Interpolate(tmplStr, scope)
			}
		}
	}

	return output, nil
}
