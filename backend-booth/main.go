package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/di"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/metrics"
	"github.com/prohmpiriya/booth-rush/pkg/config"
	"github.com/prohmpiriya/booth-rush/pkg/logger"
	"github.com/prohmpiriya/booth-rush/pkg/middleware"
	"github.com/prohmpiriya/booth-rush/pkg/telemetry"
	"go.uber.org/zap"
)

const serviceName = "booth-service"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	level := cfg.App.LogLevel
	if level == "" {
		level = cfg.App.Environment
	}
	if err := logger.Init(&logger.Config{
		Level:       level,
		ServiceName: serviceName,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Booth Service...",
		zap.String("version", cfg.App.Version),
		zap.String("store", cfg.Store.Backend),
		zap.String("events", cfg.Events.Backend),
	)

	ctx := context.Background()

	// Initialize tracing
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn("Telemetry init failed, tracing disabled", zap.Error(err))
	}
	if err := metrics.Init(); err != nil {
		appLog.Warn("Metrics init failed", zap.Error(err))
	}

	// Connect store and event backends
	infra, err := di.OpenInfrastructure(ctx, cfg, appLog)
	if err != nil {
		appLog.Fatal("Infrastructure init failed", zap.Error(err))
	}

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		ServiceName:    serviceName,
		Version:        cfg.App.Version,
		Store:          infra.Store,
		EventPublisher: infra.EventPublisher,
		Retry:          di.RetryConfig(cfg.Engine),
		ServiceConfig:  di.ServiceConfig(cfg.Engine),
		HealthChecks:   infra.HealthChecks,
		Logger:         appLog,
	})

	// Setup Gin
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DisableConsoleColor()

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.UserContext(),
		middleware.Logger(appLog),
		telemetry.TracingMiddleware(serviceName),
	)

	// Idempotency keys are honoured on write routes when Redis is available
	var mutating []gin.HandlerFunc
	if infra.Redis != nil {
		idempotencyConfig := middleware.DefaultIdempotencyConfig(infra.Redis.Client())
		idempotencyConfig.SkipPaths = []string{"/health", "/ready"}
		mutating = append(mutating, middleware.IdempotencyMiddleware(idempotencyConfig))
	}
	container.Handlers.Register(router, mutating...)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// Start server in goroutine
	go func() {
		appLog.Info("Booth Service listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := infra.Close(shutdownCtx); err != nil {
		appLog.Error("Failed to close connections", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Failed to flush traces", zap.Error(err))
	}

	appLog.Info("Server exited gracefully")
}
