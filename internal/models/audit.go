// internal/models/audit.go
package models

import (
	"encoding/json"
	"time"
)

// AuditLogEntry mirrors a row of user_action. Entries are append-only.
type AuditLogEntry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Action    string          `json:"action"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
