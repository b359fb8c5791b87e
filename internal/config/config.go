package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	RabbitMQURL   string `mapstructure:"RABBITMQ_URL"`
	ResponseQueue string `mapstructure:"RESPONSE_QUEUE"`
	QueuePrefetch int    `mapstructure:"QUEUE_PREFETCH"`

	MinioEndpoint      string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey     string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey     string `mapstructure:"MINIO_SECRET_KEY"`
	MinioUseSSL        bool   `mapstructure:"MINIO_USE_SSL"`
	AccumulationBucket string `mapstructure:"ACCUMULATION_BUCKET"`

	WebhookJWTSecret string `mapstructure:"WEBHOOK_JWT_SECRET"`
	WebhookJWTIssuer string `mapstructure:"WEBHOOK_JWT_ISSUER"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`

	GenerationLockTTL time.Duration `mapstructure:"GENERATION_LOCK_TTL"`

	// X12 envelope identity.
	SubmitterID       string `mapstructure:"SUBMITTER_ID"`
	SubmitterName     string `mapstructure:"SUBMITTER_NAME"`
	ProviderNPI       string `mapstructure:"PROVIDER_NPI"`
	ProviderName      string `mapstructure:"PROVIDER_NAME"`
	X12UsageIndicator string `mapstructure:"X12_USAGE_INDICATOR"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"RABBITMQ_URL", "RESPONSE_QUEUE", "QUEUE_PREFETCH",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_USE_SSL", "ACCUMULATION_BUCKET",
	"WEBHOOK_JWT_SECRET", "WEBHOOK_JWT_ISSUER", "GENERATION_LOCK_TTL",
	"REQUEST_TIMEOUT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"SUBMITTER_ID", "SUBMITTER_NAME", "PROVIDER_NPI", "PROVIDER_NAME", "X12_USAGE_INDICATOR",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("RESPONSE_QUEUE", "accumulation_response_queue")
	v.SetDefault("QUEUE_PREFETCH", 10)
	v.SetDefault("ACCUMULATION_BUCKET", "payer-accumulation")
	v.SetDefault("GENERATION_LOCK_TTL", "15m")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("SUBMITTER_NAME", "MAVEN CLINIC")
	v.SetDefault("PROVIDER_NAME", "MAVEN CLINIC")
	v.SetDefault("X12_USAGE_INDICATOR", "T")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.X12UsageIndicator = strings.ToUpper(cfg.X12UsageIndicator)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.WebhookJWTSecret == "" {
		log.Println("WARNING: WEBHOOK_JWT_SECRET is empty; the response webhook is unauthenticated in development mode.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the service is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// the webhook secret is mandatory, and production files must carry the
// production usage indicator.
func (c *Config) Validate() error {
	if c.X12UsageIndicator != "T" && c.X12UsageIndicator != "P" {
		return fmt.Errorf("X12_USAGE_INDICATOR must be \"T\" or \"P\", got %q", c.X12UsageIndicator)
	}
	if !c.IsDev() && c.WebhookJWTSecret == "" {
		return fmt.Errorf("WEBHOOK_JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.IsProduction() && c.X12UsageIndicator != "P" {
		return fmt.Errorf("X12_USAGE_INDICATOR must be \"P\" in production")
	}
	if c.MinioEndpoint != "" && (c.MinioAccessKey == "" || c.MinioSecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}
	if c.GenerationLockTTL <= 0 {
		return fmt.Errorf("GENERATION_LOCK_TTL must be positive, got %s", c.GenerationLockTTL)
	}
	if c.QueuePrefetch < 1 {
		return fmt.Errorf("QUEUE_PREFETCH must be at least 1, got %d", c.QueuePrefetch)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if len(c.SubmitterID) > 15 {
		return fmt.Errorf("SUBMITTER_ID must be at most 15 characters")
	}
	return nil
}
