// Package action implements the action node handler: http, email and the
// default deterministic simulation.
package action

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

type Handler struct {
	client *http.Client
}

func NewHandler() *Handler {
	return &Handler{
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// NewHandlerWithClient injects the HTTP client, for tests.
func NewHandlerWithClient(client *http.Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) Type() models.NodeType {
	return models.NodeTypeAction
}

func (h *Handler) Execute(ctx context.Context, job *models.WorkerJob) (map[string]any, error) {
	actionType, _ := job.Node.Config["actionType"].(string)
	if actionType == "" {
		actionType = "default"
	}

	switch actionType {
	case "http":
		return h.executeHTTP(ctx, job)
	case "email":
		return h.simulateEmail(job), nil
	case "default":
		return h.simulateDefault(job), nil
	default:
		return nil, protocol.NewHandlerError(fmt.Errorf("unknown actionType %q", actionType), false)
	}
}

// executeHTTP performs the configured request. Transport failures are
// retryable; the response status is captured either way.
func (h *Handler) executeHTTP(ctx context.Context, job *models.WorkerJob) (map[string]any, error) {
	config := job.Node.Config

	url, _ := config["url"].(string)
	if url == "" {
		return nil, protocol.NewHandlerError(fmt.Errorf("http action %q has no url", job.Node.ID), false)
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if rawBody, ok := config["body"].(string); ok && rawBody != "" {
		body = strings.NewReader(rawBody)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, body)
	if err != nil {
		return nil, protocol.NewHandlerError(err, false)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if s, ok := value.(string); ok {
				req.Header.Set(key, s)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, protocol.NewHandlerError(err, true)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, protocol.NewHandlerError(err, true)
	}

	return map[string]any{
		"status": float64(resp.StatusCode),
		"body":   decodeBody(resp.Header.Get("Content-Type"), raw),
	}, nil
}

// decodeBody parses JSON bodies by content-type, everything else stays text.
func decodeBody(contentType string, raw []byte) any {
	if strings.Contains(contentType, "application/json") {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			return decoded
		}
	}

	return string(raw)
}

func (h *Handler) simulateEmail(job *models.WorkerJob) map[string]any {
	to, _ := job.Node.Config["to"].(string)
	subject, _ := job.Node.Config["subject"].(string)

	return map[string]any{
		"actionType": "email",
		"to":         to,
		"subject":    subject,
		"sent":       true,
	}
}

func (h *Handler) simulateDefault(job *models.WorkerJob) map[string]any {
	return map[string]any{
		"actionType": "default",
		"nodeId":     job.Node.ID,
		"message":    fmt.Sprintf("Action %q executed", job.Node.Label),
	}
}
