// internal/workers/billing/cancel-subscription/models.go
package cancelsubscription

type Input struct {
	UserID string `json:"userId"`
}

type Output struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
