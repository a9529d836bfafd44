// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Stripe        StripeConfig            `mapstructure:"stripe"`
	Reconciler    ReconcilerConfig        `mapstructure:"reconciler"`
	Audit         AuditConfig             `mapstructure:"audit"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address            string   `mapstructure:"address"`
	ReadTimeout        int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout       int      `mapstructure:"write_timeout"` // milliseconds
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	RateLimitPerSecond float64  `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int      `mapstructure:"rate_limit_burst"`
}

type CamundaConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BrokerAddress string `mapstructure:"broker_address"`
	MaxJobsActive int    `mapstructure:"max_jobs_active"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Enabled reports whether an Elasticsearch cluster is configured.
func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig describes the hosted auth service that issues access tokens.
type AuthConfig struct {
	URL        string `mapstructure:"url"`
	AnonKey    string `mapstructure:"anon_key"`
	JWTSecret  string `mapstructure:"jwt_secret"`
	Audience   string `mapstructure:"audience"`
	CookieName string `mapstructure:"cookie_name"`
	CronSecret string `mapstructure:"cron_secret"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

type StripeConfig struct {
	SecretKey     string            `mapstructure:"secret_key"`
	WebhookSecret string            `mapstructure:"webhook_secret"`
	FrontendURL   string            `mapstructure:"frontend_url"`
	PriceIDs      map[string]string `mapstructure:"price_ids"`
	PageSize      int64             `mapstructure:"page_size"`
}

type ReconcilerConfig struct {
	Interval int `mapstructure:"interval"` // milliseconds, 0 disables the in-process ticker
	Timeout  int `mapstructure:"timeout"`  // milliseconds
}

type AuditConfig struct {
	ElasticsearchIndex string `mapstructure:"elasticsearch_index"`
}

type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	StatusCacheTTL int `mapstructure:"status_cache_ttl"` // milliseconds
}

// WorkerConfig tunes a single Zeebe job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
