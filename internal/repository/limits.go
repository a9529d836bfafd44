// internal/repository/limits.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entitlement-service/internal/models"

	"github.com/Masterminds/squirrel"
)

const limitsTable = "user_limits"

var limitsColumns = []string{
	"user_id", "plan", "daily_limit", "used_today", "daily_reset_at", "monthly_limit",
	"used_monthly", "monthly_reset_at", "allow_export", "allow_custom_branding", "is_active", "updated_at",
}

// LimitsStore reads and replaces user_limits rows.
type LimitsStore struct {
	db *sql.DB
}

func NewLimitsStore(db *sql.DB) *LimitsStore {
	return &LimitsStore{db: db}
}

// Upsert fully replaces the row keyed by user_id.
func (s *LimitsStore) Upsert(ctx context.Context, l models.UserLimits) error {
	query, args, err := psql.Insert(limitsTable).
		Columns(limitsColumns...).
		Values(l.UserID, l.Plan, l.DailyLimit, l.UsedToday, l.DailyResetAt, l.MonthlyLimit,
			l.UsedMonthly, l.MonthlyResetAt, l.AllowExport, l.AllowCustomBranding, l.IsActive, l.UpdatedAt).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			daily_limit = EXCLUDED.daily_limit,
			used_today = EXCLUDED.used_today,
			daily_reset_at = EXCLUDED.daily_reset_at,
			monthly_limit = EXCLUDED.monthly_limit,
			used_monthly = EXCLUDED.used_monthly,
			monthly_reset_at = EXCLUDED.monthly_reset_at,
			allow_export = EXCLUDED.allow_export,
			allow_custom_branding = EXCLUDED.allow_custom_branding,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build limits upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert limits for %s: %w", l.UserID, err)
	}
	return nil
}

// FindByUserID returns the limits row for a user or ErrNotFound.
func (s *LimitsStore) FindByUserID(ctx context.Context, userID string) (*models.UserLimits, error) {
	query, args, err := psql.Select(limitsColumns...).
		From(limitsTable).
		Where(squirrel.Eq{"user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build limits query: %w", err)
	}

	var l models.UserLimits
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&l.UserID, &l.Plan, &l.DailyLimit, &l.UsedToday, &l.DailyResetAt, &l.MonthlyLimit,
		&l.UsedMonthly, &l.MonthlyResetAt, &l.AllowExport, &l.AllowCustomBranding, &l.IsActive, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load limits for %s: %w", userID, err)
	}
	return &l, nil
}
