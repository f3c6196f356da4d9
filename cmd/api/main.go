package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/careops-engine/internal/app"
	"github.com/kursadbilgin/careops-engine/internal/config"
	"github.com/kursadbilgin/careops-engine/internal/handler"
	"github.com/kursadbilgin/careops-engine/internal/observability"
	"github.com/kursadbilgin/careops-engine/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "api")
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("careops-engine api initialization failed", zap.Error(err))
	}
	defer components.Close() //nolint:errcheck

	automation, err := handler.NewAutomationHandler(
		components.Orchestrator,
		components.Scheduler,
		components.AutoReplier,
		components.Messages,
	)
	if err != nil {
		logger.Fatal("automation handler initialization failed", zap.Error(err))
	}

	server := fiber.New(fiber.Config{
		AppName:               "careops-engine",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	server.Use(recover.New())
	server.Use(requestid.New())
	server.Use(components.Metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(server, components.SQLDB, components.Redis, components.Broker())
	server.Get("/metrics", adaptor.HTTPHandler(components.Metrics.Handler()))
	if err := handler.RegisterAutomationRoutes(server, automation); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	logger.Info("careops-engine api started",
		zap.Int("port", cfg.APIPort),
		zap.String("gatewayMode", cfg.GatewayMode),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-listenErr:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}

	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	logger.Info("careops-engine api stopped")
}
