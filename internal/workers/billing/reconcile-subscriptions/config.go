// internal/workers/billing/reconcile-subscriptions/config.go
package reconcilesubscriptions

import (
	"time"

	"entitlement-service/internal/common/config"
)

type Config struct {
	Timeout  time.Duration
	Interval time.Duration
	PageSize int64
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:  config.GetDuration(cfg.Reconciler.Timeout),
		Interval: config.GetDuration(cfg.Reconciler.Interval),
		PageSize: cfg.Stripe.PageSize,
	}
}
