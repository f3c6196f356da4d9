package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/careops-engine/internal/ratelimit"
)

// Gateway modes select how EMAIL/SMS leave the process.
const (
	GatewayModeMock   = "mock"
	GatewayModeDirect = "direct"
	GatewayModeQueue  = "queue"
)

type Config struct {
	DatabaseDSN       string        `env:"DATABASE_DSN,required=true"`
	RedisURL          string        `env:"REDIS_URL,required=true"`
	RabbitMQURL       string        `env:"RABBITMQ_URL"`
	GatewayMode       string        `env:"GATEWAY_MODE,default=mock"`
	GatewayTimeout    time.Duration `env:"GATEWAY_TIMEOUT,default=5s"`
	SMTPHost          string        `env:"SMTP_HOST"`
	SMTPPort          int           `env:"SMTP_PORT,default=587"`
	SMTPUser          string        `env:"SMTP_USER"`
	SMTPPassword      string        `env:"SMTP_PASSWORD"`
	SMTPFrom          string        `env:"SMTP_FROM,default=no-reply@careops.local"`
	SMSWebhookURL     string        `env:"SMS_WEBHOOK_URL"`
	RateLimitPerSec   int           `env:"RATE_LIMIT_PER_SEC,default=100"`
	EmailRateLimit    int           `env:"EMAIL_RATE_LIMIT_PER_SEC"`
	SMSRateLimit      int           `env:"SMS_RATE_LIMIT_PER_SEC"`
	SweepConcurrency  int           `env:"SWEEP_CONCURRENCY,default=4"`
	ReminderSchedule  string        `env:"REMINDER_SCHEDULE,default=0 8 * * *"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY,default=8"`
	APIPort           int           `env:"API_PORT,default=8080"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.GatewayMode = strings.ToLower(strings.TrimSpace(cfg.GatewayMode))
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.GatewayMode {
	case GatewayModeMock:
	case GatewayModeDirect:
		if c.SMTPHost == "" || c.SMSWebhookURL == "" {
			return fmt.Errorf("gateway mode %q requires SMTP_HOST and SMS_WEBHOOK_URL", c.GatewayMode)
		}
	case GatewayModeQueue:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("gateway mode %q requires RABBITMQ_URL", c.GatewayMode)
		}
		if c.SMTPHost == "" || c.SMSWebhookURL == "" {
			return fmt.Errorf("gateway mode %q requires SMTP_HOST and SMS_WEBHOOK_URL for delivery", c.GatewayMode)
		}
	default:
		return fmt.Errorf("unknown gateway mode %q", c.GatewayMode)
	}

	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	if c.RateLimitPerSec <= 0 || c.EmailRateLimit < 0 || c.SMSRateLimit < 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}

// RateLimits returns the per-channel send budgets. Channel overrides left at
// zero use RATE_LIMIT_PER_SEC.
func (c *Config) RateLimits() ratelimit.Limits {
	return ratelimit.Limits{
		Default: c.RateLimitPerSec,
		Email:   c.EmailRateLimit,
		SMS:     c.SMSRateLimit,
	}
}
