// Package main implements the entry point for the askstream gateway,
// which accepts question submissions, exposes task status, and feeds
// the durable queue consumed by the workers.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phrazzld/askstream/internal/config"
	"github.com/phrazzld/askstream/internal/platform/logger"
	"github.com/phrazzld/askstream/internal/platform/postgres"
	"github.com/phrazzld/askstream/internal/platform/redis"
	"github.com/phrazzld/askstream/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway failed: %v", err)
	}
}

// run initializes configuration, logging, the backing stores, and the
// HTTP server, then serves until a shutdown signal arrives.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)
	appLogger.Info("gateway configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to archive database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			appLogger.Error("failed to close database", "error", closeErr)
		}
	}()

	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate archive database: %w", err)
	}
	appLogger.Info("archive database ready")

	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			appLogger.Error("failed to close redis client", "error", closeErr)
		}
	}()

	statusStore := redis.NewHashStatusStore(redisClient, appLogger)
	taskQueue := redis.NewStreamQueue(redisClient, cfg.Redis.Stream, cfg.Redis.Group, 0, appLogger)
	archive := postgres.NewTaskArchive(db, appLogger)

	taskService, err := service.NewTaskService(statusStore, archive, taskQueue, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create task service: %w", err)
	}

	router := setupRouter(taskService, appLogger)

	return serveHTTP(ctx, cfg.Server.Port, router, appLogger)
}

// serveHTTP starts the HTTP server and shuts it down gracefully when
// the context is cancelled.
func serveHTTP(ctx context.Context, port int, handler http.Handler, appLogger *slog.Logger) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("starting gateway server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		appLogger.Info("shutting down gateway server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	appLogger.Info("gateway shutdown completed")
	return nil
}
