// Package cmd provides the construction helpers shared by the engine
// binaries.
package cmd

import (
	"log/slog"

	"github.com/SoumadeepCh/FlowSync/pkg/handlers/action"
	"github.com/SoumadeepCh/FlowSync/pkg/handlers/condition"
	"github.com/SoumadeepCh/FlowSync/pkg/handlers/delay"
	"github.com/SoumadeepCh/FlowSync/pkg/handlers/end"
	"github.com/SoumadeepCh/FlowSync/pkg/handlers/fork"
	"github.com/SoumadeepCh/FlowSync/pkg/handlers/join"
	"github.com/SoumadeepCh/FlowSync/pkg/handlers/start"
	"github.com/SoumadeepCh/FlowSync/pkg/handlers/transform"
	"github.com/SoumadeepCh/FlowSync/pkg/handlers/webhookresponse"
	"github.com/SoumadeepCh/FlowSync/pkg/registry"
)

// NewRegistry registers every built-in node handler.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.Register(start.NewHandler())
	reg.Register(end.NewHandler())
	reg.Register(action.NewHandler())
	reg.Register(condition.NewHandler())
	reg.Register(delay.NewHandler())
	reg.Register(fork.NewHandler())
	reg.Register(join.NewHandler())
	reg.Register(transform.NewHandler())
	reg.Register(webhookresponse.NewHandler())

	return reg
}
