package model

import "time"

// Event describes a committed state transition for the notification layer.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Entity     string         `json:"entity"`
	Action     string         `json:"action"`
	EntityID   int64          `json:"entity_id"`
	ChildID    int64          `json:"child_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Extra      map[string]any `json:"extra,omitempty"`
}
