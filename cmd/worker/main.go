package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kursadbilgin/careops-engine/internal/app"
	"github.com/kursadbilgin/careops-engine/internal/config"
	"github.com/kursadbilgin/careops-engine/internal/observability"
	"github.com/kursadbilgin/careops-engine/internal/queue"
	"github.com/kursadbilgin/careops-engine/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "worker")
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("careops-engine worker initialization failed", zap.Error(err))
	}
	defer components.Close() //nolint:errcheck

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return components.Scheduler.Start(groupCtx)
	})

	if cfg.GatewayMode == config.GatewayModeQueue {
		consumer := queue.NewRabbitMQConsumer(components.RabbitMQ, cfg.WorkerConcurrency, logger)

		worker, err := service.NewDeliveryWorker(
			consumer,
			components.DirectGateway,
			components.RateLimiter,
			cfg.WorkerConcurrency,
			cfg.GatewayTimeout,
			logger,
		)
		if err != nil {
			logger.Fatal("delivery worker initialization failed", zap.Error(err))
		}
		worker.SetMetrics(components.Metrics)

		g.Go(func() error {
			return worker.Start(groupCtx)
		})
	}

	logger.Info("careops-engine worker started",
		zap.String("gatewayMode", cfg.GatewayMode),
		zap.String("reminderSchedule", cfg.ReminderSchedule),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("careops-engine worker stopped with error", zap.Error(err))
		return
	}
	logger.Info("careops-engine worker stopped")
}
