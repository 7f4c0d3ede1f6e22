// Package protocol defines the contracts between the engine core and node
// handlers.
package protocol

import (
	"context"
	"errors"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

// Handler executes one node type. Implementations must be idempotent with
// respect to external side effects when their failures are retryable.
type Handler interface {
	Type() models.NodeType
	Execute(ctx context.Context, job *models.WorkerJob) (map[string]any, error)
}

// HandlerError wraps a handler failure with its retry classification. A
// plain error from a handler is treated as retryable.
type HandlerError struct {
	Err       error
	Retryable bool
}

func (e *HandlerError) Error() string {
	return e.Err.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// NewHandlerError classifies a handler failure.
func NewHandlerError(err error, retryable bool) *HandlerError {
	return &HandlerError{Err: err, Retryable: retryable}
}

// IsRetryable reports the retry classification of a handler failure.
func IsRetryable(err error) bool {
	var handlerErr *HandlerError
	if errors.As(err, &handlerErr) {
		return handlerErr.Retryable
	}

	return true
}
