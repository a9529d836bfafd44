// internal/workers/billing/stripe-webhook/config.go
package stripewebhook

import (
	"strings"
	"time"

	"entitlement-service/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	WebhookSecret string
	PriceIDs      map[string]string
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:       10 * time.Second,
		WebhookSecret: strings.TrimSpace(cfg.Stripe.WebhookSecret),
		PriceIDs:      cfg.Stripe.PriceIDs,
	}
}
