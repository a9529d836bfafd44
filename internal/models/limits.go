// internal/models/limits.go
package models

import (
	"time"

	"entitlement-service/pkg/plans"
)

// UserLimits mirrors a row of user_limits. The row is always fully replaced.
type UserLimits struct {
	UserID              string    `json:"userId" db:"user_id"`
	Plan                string    `json:"plan" db:"plan"`
	DailyLimit          int       `json:"dailyLimit" db:"daily_limit"`
	UsedToday           int       `json:"usedToday" db:"used_today"`
	DailyResetAt        time.Time `json:"dailyResetAt" db:"daily_reset_at"`
	MonthlyLimit        int       `json:"monthlyLimit" db:"monthly_limit"`
	UsedMonthly         int       `json:"usedMonthly" db:"used_monthly"`
	MonthlyResetAt      time.Time `json:"monthlyResetAt" db:"monthly_reset_at"`
	AllowExport         bool      `json:"allowExport" db:"allow_export"`
	AllowCustomBranding bool      `json:"allowCustomBranding" db:"allow_custom_branding"`
	IsActive            bool      `json:"isActive" db:"is_active"`
	UpdatedAt           time.Time `json:"updatedAt" db:"updated_at"`
}

// NewUserLimits builds a freshly reset row for the given plan limits.
func NewUserLimits(userID string, plan plans.Plan, limits plans.Limits, now time.Time) UserLimits {
	return UserLimits{
		UserID:              userID,
		Plan:                plan.String(),
		DailyLimit:          limits.DailyGenerations,
		UsedToday:           0,
		DailyResetAt:        now,
		MonthlyLimit:        limits.MonthlyRequests,
		UsedMonthly:         0,
		MonthlyResetAt:      now,
		AllowExport:         limits.AllowExport,
		AllowCustomBranding: limits.AllowCustomBranding,
		IsActive:            true,
		UpdatedAt:           now,
	}
}
