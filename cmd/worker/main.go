// Package main implements the entry point for an askstream worker: a
// single consumer identity pulling tasks from the durable queue,
// invoking the answer engine, and publishing results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/askstream/internal/config"
	"github.com/phrazzld/askstream/internal/platform/gemini"
	"github.com/phrazzld/askstream/internal/platform/logger"
	"github.com/phrazzld/askstream/internal/platform/postgres"
	"github.com/phrazzld/askstream/internal/platform/redis"
	"github.com/phrazzld/askstream/internal/worker"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker failed: %v", err)
	}
}

func run() error {
	consumerFlag := flag.String("consumer", "", "consumer identity within the group (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	consumer := cfg.Worker.Consumer
	if *consumerFlag != "" {
		consumer = *consumerFlag
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)
	appLogger.Info("worker configuration loaded",
		"consumer", consumer,
		"stream", cfg.Redis.Stream,
		"group", cfg.Redis.Group)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			appLogger.Error("failed to close redis client", "error", closeErr)
		}
	}()

	db, err := postgres.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to archive database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			appLogger.Error("failed to close database", "error", closeErr)
		}
	}()

	answerEngine, err := gemini.New(ctx, appLogger, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create answer engine: %w", err)
	}

	taskQueue := redis.NewStreamQueue(redisClient, cfg.Redis.Stream, cfg.Redis.Group, cfg.Worker.PollBlock, appLogger)
	statusStore := redis.NewHashStatusStore(redisClient, appLogger)
	archive := postgres.NewTaskArchive(db, appLogger)
	publisher := redis.NewNotifier(redisClient, cfg.Redis.ResultsChannel, appLogger)

	w, err := worker.New(
		worker.Config{
			Consumer:        consumer,
			RetryInterval:   cfg.Worker.RetryInterval,
			ReclaimMinIdle:  cfg.Worker.ReclaimMinIdle,
			ReclaimInterval: cfg.Worker.ReclaimInterval,
		},
		taskQueue,
		statusStore,
		archive,
		answerEngine,
		publisher,
		appLogger,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	return w.Run(ctx)
}
