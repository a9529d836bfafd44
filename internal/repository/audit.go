// internal/repository/audit.go
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"entitlement-service/internal/models"
)

// AuditStore appends to user_action.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Insert appends an entry. created_at is left to the database default.
func (s *AuditStore) Insert(ctx context.Context, e models.AuditLogEntry) error {
	var metadata interface{}
	if len(e.Metadata) > 0 {
		metadata = []byte(e.Metadata)
	}

	query, args, err := psql.Insert("user_action").
		Columns("id", "user_id", "action", "metadata").
		Values(e.ID, e.UserID, e.Action, metadata).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build audit insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}
