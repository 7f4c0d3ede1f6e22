package models

import "time"

// AuditEntry is an append-only record of an engine event. It never affects
// control flow.
type AuditEntry struct {
	ID         string         `json:"id"`
	Event      string         `json:"event"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
