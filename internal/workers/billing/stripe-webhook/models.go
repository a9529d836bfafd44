// internal/workers/billing/stripe-webhook/models.go
package stripewebhook

type Input struct {
	Payload   []byte
	Signature string
}

type Output struct {
	Received bool   `json:"received"`
	Type     string `json:"-"`
	Handled  bool   `json:"-"`
}

// Outcome labels for stripe_webhook_events_total.
const (
	outcomeHandled  = "handled"
	outcomeIgnored  = "ignored"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)
