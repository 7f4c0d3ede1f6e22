package models

import "time"

// Default retry policy knobs.
const (
	DefaultBackoffMs         = 1000
	DefaultBackoffMultiplier = 2.0
)

// RetryPolicy controls re-execution of a failed step.
type RetryPolicy struct {
	MaxRetries        int     `json:"max_retries"`
	BackoffMs         int     `json:"backoff_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// RetryPolicyFromConfig reads node.config["retry"]. Missing or malformed
// fields fall back to the defaults (maxRetries=0, backoffMs=1000,
// multiplier=2).
func RetryPolicyFromConfig(config map[string]any) RetryPolicy {
	policy := RetryPolicy{
		MaxRetries:        0,
		BackoffMs:         DefaultBackoffMs,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}

	if config == nil {
		return policy
	}

	retryConfig, ok := config["retry"].(map[string]any)
	if !ok {
		return policy
	}

	if v, ok := asInt(retryConfig["maxRetries"]); ok && v >= 0 {
		policy.MaxRetries = v
	}

	if v, ok := asInt(retryConfig["backoffMs"]); ok && v > 0 {
		policy.BackoffMs = v
	}

	if v, ok := retryConfig["backoffMultiplier"].(float64); ok && v > 0 {
		policy.BackoffMultiplier = v
	}

	return policy
}

// asInt accepts the numeric shapes JSON decoding produces.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// WorkerJob is the payload dispatched to a worker. Its ID is the step
// execution's ID.
type WorkerJob struct {
	ID              string         `json:"id"`
	ExecutionID     string         `json:"execution_id"`
	WorkflowID      string         `json:"workflow_id"`
	Node            Node           `json:"node"`
	Input           map[string]any `json:"input,omitempty"`
	PreviousResults map[string]any `json:"previous_results,omitempty"`
	UpstreamResults map[string]any `json:"upstream_results,omitempty"`
	Attempt         int            `json:"attempt"`
	Retry           RetryPolicy    `json:"retry"`
}

// ResultStatus is the terminal outcome a handler reports for a job.
type ResultStatus string

const (
	ResultStatusCompleted ResultStatus = "completed"
	ResultStatusFailed    ResultStatus = "failed"
)

// WorkerResult is the handler contract's output shape.
type WorkerResult struct {
	JobID       string         `json:"job_id"`
	StepID      string         `json:"step_id"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	NodeType    NodeType       `json:"node_type"`
	Status      ResultStatus   `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	Retryable   bool           `json:"retryable,omitempty"`
}

// JobStatus tracks a queue row through its lifecycle:
// pending -> processing -> (done|failed), no back-edges.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// QueuedJob is the durable queue row. It shares the step execution's ID and
// lifecycle.
type QueuedJob struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	NodeLabel   string         `json:"node_label"`
	NodeType    NodeType       `json:"node_type"`
	Payload     WorkerJob      `json:"payload"`
	Status      JobStatus      `json:"status"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"max_attempts"`
	LockedAt    *time.Time     `json:"locked_at,omitempty"`
	LockedBy    string         `json:"locked_by,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
