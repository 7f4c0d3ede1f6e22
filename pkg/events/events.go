// Package events defines the typed engine events published on the event bus.
package events

import (
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

type EventType string

const Topic = "flowsync.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	// Queue and scheduler events.
	JobEnqueuedEvent  EventType = "job.enqueued"
	TriggerFiredEvent EventType = "trigger.fired"
	DLQEntryEvent     EventType = "dlq.entry"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Input       map[string]any `json:"input,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Output      map[string]any `json:"output,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

// JobEnqueued wakes idle workers so freshly enqueued jobs do not wait for
// the next poll interval.
type JobEnqueued struct {
	BaseEvent

	JobID       string `json:"job_id"`
	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
}

func (e JobEnqueued) GetType() EventType {
	return JobEnqueuedEvent
}

type TriggerFired struct {
	BaseEvent

	TriggerID   string             `json:"trigger_id"`
	TriggerType models.TriggerType `json:"trigger_type"`
}

func (e TriggerFired) GetType() EventType {
	return TriggerFiredEvent
}

type DLQEntry struct {
	BaseEvent

	JobID       string `json:"job_id"`
	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Error       string `json:"error"`
	Attempts    int    `json:"attempts"`
}

func (e DLQEntry) GetType() EventType {
	return DLQEntryEvent
}
