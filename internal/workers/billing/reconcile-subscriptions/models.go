// internal/workers/billing/reconcile-subscriptions/models.go
package reconcilesubscriptions

import "time"

// Triggers recorded on metrics and logs.
const (
	TriggerHTTP      = "http"
	TriggerJob       = "job"
	TriggerScheduler = "scheduler"
	TriggerCLI       = "cli"
	TriggerWebhook   = "webhook"
)

// Report summarises one reconciliation run.
type Report struct {
	Pages      int       `json:"pages"`
	Scanned    int       `json:"scanned"`
	Healthy    int       `json:"healthy"`
	Downgraded int       `json:"downgraded"`
	Unmatched  int       `json:"unmatched"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
}

// DowngradedEvent is the payload of subscription.downgraded.
type DowngradedEvent struct {
	UserID         string `json:"userId"`
	CustomerID     string `json:"customerId"`
	SubscriptionID string `json:"subscriptionId"`
	RemoteStatus   string `json:"remoteStatus"`
	Trigger        string `json:"trigger"`
}

type Output struct {
	Report *Report `json:"reconcileReport"`
}
