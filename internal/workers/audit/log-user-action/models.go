// internal/workers/audit/log-user-action/models.go
package loguseraction

import (
	"encoding/json"
	"fmt"
)

type Input struct {
	UserID   string          `json:"userId"`
	Action   string          `json:"action"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type Output struct {
	OK bool `json:"ok"`
}

// Sinks a LogError can originate from.
const (
	SinkDatabase      = "database"
	SinkElasticsearch = "elasticsearch"
)

// LogError reports a failed audit write. Callers are free to ignore it.
type LogError struct {
	Sink string
	Err  error
}

func (e *LogError) Error() string {
	return fmt.Sprintf("audit %s write failed: %v", e.Sink, e.Err)
}

func (e *LogError) Unwrap() error {
	return e.Err
}
