// internal/workers/billing/subscription-status/models.go
package subscriptionstatus

type Input struct {
	UserID string `json:"userId"`
}

// Output reports the daily generation quota and counter.
type Output struct {
	Plan         string `json:"plan"`
	Limit        int    `json:"limit"`
	Used         int    `json:"used"`
	StripeStatus string `json:"stripeStatus,omitempty"`
}
