// internal/workers/billing/subscription-status/config.go
package subscriptionstatus

import (
	"time"

	"entitlement-service/internal/common/config"
)

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:  5 * time.Second,
		CacheTTL: config.GetDuration(cfg.Notifications.StatusCacheTTL),
	}
}
