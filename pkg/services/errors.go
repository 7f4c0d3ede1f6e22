// Package services implements the boundary-facing workflow, trigger and
// execution services.
package services

import (
	"errors"

	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
)

var (
	// ErrValidation wraps every malformed-input failure.
	ErrValidation = errors.New("validation failed")
	// ErrWorkflowNotActive is returned when execution is requested on a
	// draft or archived workflow.
	ErrWorkflowNotActive = errors.New("workflow is not active")
	// ErrExecutionTerminal is returned when cancelling an execution that
	// already settled; terminal state sticks.
	ErrExecutionTerminal = errors.New("execution is already terminal")
)

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return persistence.IsNotFound(err)
}
