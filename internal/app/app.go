package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kursadbilgin/careops-engine/internal/config"
	"github.com/kursadbilgin/careops-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/careops-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/careops-engine/internal/infra/redis"
	"github.com/kursadbilgin/careops-engine/internal/observability"
	"github.com/kursadbilgin/careops-engine/internal/provider"
	"github.com/kursadbilgin/careops-engine/internal/queue"
	"github.com/kursadbilgin/careops-engine/internal/ratelimit"
	"github.com/kursadbilgin/careops-engine/internal/repository"
	"github.com/kursadbilgin/careops-engine/internal/service"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Components holds everything the api and worker binaries share.
type Components struct {
	DB        *gorm.DB
	SQLDB     *sql.DB
	Redis     *goredis.Client
	RabbitMQ  *queue.RabbitMQ
	Publisher *queue.RabbitMQPublisher
	Metrics   *observability.Metrics

	Messages      repository.MessageRepository
	RateLimiter   ratelimit.RateLimiter
	DirectGateway provider.Gateway

	Dispatcher   *service.Dispatcher
	Orchestrator *service.Orchestrator
	Sweep        *service.ReminderSweep
	AutoReplier  *service.AutoReplier
	Scheduler    *service.ReminderScheduler
}

// Build connects the stores, selects the gateway for cfg.GatewayMode and
// constructs the automation services. Callers must Close the result.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Components{Metrics: observability.NewMetrics()}

	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN, postgresql.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("postgres initialization failed: %w", err)
	}
	c.DB = db

	if err := migrations.Migrate(db); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	c.SQLDB = sqlDB

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis initialization failed: %w", err)
	}
	c.Redis = rdb

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimits())
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("rate limiter initialization failed: %w", err)
	}
	c.RateLimiter = limiter

	gateway, err := c.buildGateway(ctx, cfg, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	if err := c.buildServices(cfg, gateway, logger); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

func (c *Components) buildGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (provider.Gateway, error) {
	if cfg.GatewayMode == config.GatewayModeMock {
		logger.Info("using mock messaging gateway")
		return provider.NewMockGateway(logger), nil
	}

	email, err := provider.NewSMTPEmailSender(provider.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("smtp sender initialization failed: %w", err)
	}
	sms, err := provider.NewWebhookSMSSender(cfg.SMSWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("sms webhook initialization failed: %w", err)
	}
	direct, err := provider.NewChannelGateway(email, sms)
	if err != nil {
		return nil, err
	}
	c.DirectGateway = direct

	if cfg.GatewayMode == config.GatewayModeQueue {
		rabbit, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL, logger)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		c.RabbitMQ = rabbit

		c.Publisher = queue.NewRabbitMQPublisher(rabbit)
		logger.Info("using queued messaging gateway")
		return provider.NewQueueGateway(c.Publisher)
	}

	logger.Info("using direct messaging gateway")
	return provider.NewRateLimitedGateway(direct, c.RateLimiter)
}

func (c *Components) buildServices(cfg *config.Config, gateway provider.Gateway, logger *zap.Logger) error {
	messages := repository.NewGormMessageRepo(c.DB)
	leads := repository.NewGormLeadRepo(c.DB)
	services := repository.NewGormServiceRepo(c.DB)
	bookings := repository.NewGormBookingRepo(c.DB)
	inventory := repository.NewGormInventoryRepo(c.DB)
	c.Messages = messages

	dispatcher, err := service.NewDispatcher(gateway, messages, cfg.GatewayTimeout, logger)
	if err != nil {
		return fmt.Errorf("dispatcher initialization failed: %w", err)
	}
	dispatcher.SetMetrics(c.Metrics)
	c.Dispatcher = dispatcher

	orchestrator, err := service.NewOrchestrator(dispatcher, inventory, bookings, leads, services, logger)
	if err != nil {
		return fmt.Errorf("orchestrator initialization failed: %w", err)
	}
	orchestrator.SetMetrics(c.Metrics)
	c.Orchestrator = orchestrator

	sweep, err := service.NewReminderSweep(bookings, dispatcher, cfg.SweepConcurrency, logger)
	if err != nil {
		return fmt.Errorf("reminder sweep initialization failed: %w", err)
	}
	sweep.SetMetrics(c.Metrics)
	c.Sweep = sweep

	autoReplier, err := service.NewAutoReplier(messages, leads, dispatcher, logger)
	if err != nil {
		return fmt.Errorf("auto-replier initialization failed: %w", err)
	}
	c.AutoReplier = autoReplier

	guard, err := infraredis.NewSweepGuard(c.Redis, 0)
	if err != nil {
		return fmt.Errorf("sweep guard initialization failed: %w", err)
	}
	scheduler, err := service.NewReminderScheduler(sweep, guard, cfg.ReminderSchedule, logger)
	if err != nil {
		return fmt.Errorf("reminder scheduler initialization failed: %w", err)
	}
	c.Scheduler = scheduler

	return nil
}

// Broker returns the queue connection for readiness checks, or nil when the
// gateway does not use one.
func (c *Components) Broker() interface{ Connected() bool } {
	if c == nil || c.RabbitMQ == nil {
		return nil
	}
	return c.RabbitMQ
}

func (c *Components) Close() error {
	if c == nil {
		return nil
	}

	var errs []error
	if c.Publisher != nil {
		errs = append(errs, c.Publisher.Close())
	}
	if c.RabbitMQ != nil {
		errs = append(errs, c.RabbitMQ.Close())
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		errs = append(errs, postgresql.Close(c.DB))
	}
	return errors.Join(errs...)
}
