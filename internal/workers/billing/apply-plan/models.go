// internal/workers/billing/apply-plan/models.go
package applyplan

import "time"

type Input struct {
	UserID string `json:"userId"`
	Plan   string `json:"plan"`
}

type Output struct {
	UserID       string    `json:"userId"`
	Plan         string    `json:"plan"`
	DailyLimit   int       `json:"dailyLimit"`
	MonthlyLimit int       `json:"monthlyLimit"`
	AppliedAt    time.Time `json:"appliedAt"`
}
