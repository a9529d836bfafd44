// internal/workers/billing/create-checkout/config.go
package createcheckout

import (
	"strings"
	"time"

	"entitlement-service/internal/common/config"
)

type Config struct {
	Timeout     time.Duration
	FrontendURL string
	PriceIDs    map[string]string
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:     10 * time.Second,
		FrontendURL: strings.TrimSuffix(cfg.Stripe.FrontendURL, "/"),
		PriceIDs:    cfg.Stripe.PriceIDs,
	}
}

func (c *Config) successURL() string {
	return c.FrontendURL + "/dashboard?checkout=success&session_id={CHECKOUT_SESSION_ID}"
}

func (c *Config) cancelURL() string {
	return c.FrontendURL + "/pricing?checkout=cancelled"
}
