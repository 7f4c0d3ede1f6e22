package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	nodeType models.NodeType
}

func (h *stubHandler) Type() models.NodeType {
	return h.nodeType
}

func (h *stubHandler) Execute(_ context.Context, _ *models.WorkerJob) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry(slog.Default())

	r.Register(&stubHandler{nodeType: models.NodeTypeAction})

	handler, err := r.Get(models.NodeTypeAction)
	require.NoError(t, err)
	assert.Equal(t, models.NodeTypeAction, handler.Type())

	assert.True(t, r.Has(models.NodeTypeAction))
	assert.False(t, r.Has(models.NodeTypeJoin))
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry(slog.Default())

	_, err := r.Get(models.NodeTypeDelay)
	assert.Error(t, err)
}

func TestRegistry_ListTypes(t *testing.T) {
	r := NewRegistry(slog.Default())

	r.Register(&stubHandler{nodeType: models.NodeTypeStart})
	r.Register(&stubHandler{nodeType: models.NodeTypeEnd})
	r.Register(&stubHandler{nodeType: models.NodeTypeAction})

	assert.Equal(t, []string{"action", "end", "start"}, r.ListTypes())
}
