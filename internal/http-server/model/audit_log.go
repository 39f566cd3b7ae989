package model

import (
	"encoding/json"
	"time"
)

// AuditLog rows are append-only: written once, never updated or deleted.
type AuditLog struct {
	ID        int64           `json:"id"`
	ActorID   string          `json:"actor_id"`
	Action    string          `json:"action"`
	Target    string          `json:"target"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
