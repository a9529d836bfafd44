// internal/workers/audit/log-user-action/config.go
package loguseraction

import (
	"time"

	"entitlement-service/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	Index   string
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout: 5 * time.Second,
		Index:   cfg.Audit.ElasticsearchIndex,
	}
}
