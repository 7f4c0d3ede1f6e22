// Package webhook serves the trigger ingress: webhook-triggered runs enter
// the engine here. The management REST surface lives outside the core.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/orchestrator"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

type Server struct {
	app          *fiber.App
	triggers     persistence.TriggerRepository
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
}

func NewServer(store persistence.Persistence, orch *orchestrator.Orchestrator, logger *slog.Logger) *Server {
	server := &Server{
		app:          fiber.New(),
		triggers:     store.Triggers(),
		orchestrator: orch,
		logger:       logger.With("module", "webhook_server"),
	}

	server.app.Post("/webhooks/:triggerID", server.handleWebhook)

	return server
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("Webhook server listening", "addr", addr)

	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// handleWebhook starts an execution for an enabled webhook trigger. The
// request body (JSON object) merges over the trigger's configured input.
// The execution runs detached; the response carries its ID immediately.
func (s *Server) handleWebhook(c fiber.Ctx) error {
	triggerID := c.Params("triggerID")

	trigger, err := s.triggers.GetByID(c.Context(), triggerID)
	if err != nil {
		return notFound(c, fmt.Sprintf("trigger %s not found", triggerID))
	}

	if trigger.Type != models.TriggerTypeWebhook {
		return badRequest(c, fmt.Sprintf("trigger %s is not a webhook trigger", triggerID))
	}

	if !trigger.Enabled {
		return badRequest(c, fmt.Sprintf("trigger %s is disabled", triggerID))
	}

	input := make(map[string]any)

	if configured, ok := trigger.Config["input"].(map[string]any); ok {
		for key, value := range configured {
			input[key] = value
		}
	}

	if len(c.Body()) > 0 {
		var body map[string]any
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return badRequest(c, "request body must be a JSON object")
		}

		for key, value := range body {
			input[key] = value
		}
	}

	executionID, wait, err := s.orchestrator.Begin(c.Context(), trigger.WorkflowID, input, "")
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, err.Error())
		}

		return badRequest(c, err.Error())
	}

	if wait != nil {
		logger := s.logger.With("trigger_id", triggerID, "execution_id", executionID)

		go func() {
			timer := time.NewTimer(10 * time.Minute)
			defer timer.Stop()

			select {
			case signal := <-wait:
				logger.Info("Webhook execution settled", "status", signal.Status)
			case <-timer.C:
				logger.Warn("Webhook execution still unsettled; detaching")
			}
		}()
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"execution_id": executionID,
		"status":       "accepted",
	})
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}
