// Package registry maps node types to their executable handlers.
package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/protocol"
)

type Registry struct {
	logger   *slog.Logger
	handlers map[models.NodeType]protocol.Handler
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger.With("module", "registry"),
		handlers: make(map[models.NodeType]protocol.Handler),
	}
}

// Register installs a handler for its node type. Registration happens at
// startup; later registrations for the same type replace the earlier one.
func (r *Registry) Register(handler protocol.Handler) {
	r.handlers[handler.Type()] = handler
	r.logger.Debug("Registered handler", "node_type", handler.Type())
}

func (r *Registry) Get(nodeType models.NodeType) (protocol.Handler, error) {
	handler, ok := r.handlers[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type %q not registered", nodeType)
	}

	return handler, nil
}

func (r *Registry) Has(nodeType models.NodeType) bool {
	_, ok := r.handlers[nodeType]

	return ok
}

func (r *Registry) ListTypes() []string {
	types := make([]string, 0, len(r.handlers))
	for nodeType := range r.handlers {
		types = append(types, string(nodeType))
	}

	sort.Strings(types)

	return types
}
