// Package main implements the entry point for the askstream listener,
// which subscribes to the notification bus and forwards completed
// results to the configured delivery webhook.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/askstream/internal/config"
	"github.com/phrazzld/askstream/internal/notify"
	"github.com/phrazzld/askstream/internal/platform/logger"
	"github.com/phrazzld/askstream/internal/platform/redis"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("listener failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Listener.WebhookURL == "" {
		return errors.New("listener webhook URL is not configured")
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)
	appLogger.Info("listener configuration loaded",
		"channel", cfg.Redis.ResultsChannel,
		"backoff", cfg.Listener.Backoff)

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

	subscriber := redis.NewChannelSubscriber(redisClient, cfg.Redis.ResultsChannel)
	forwarder := newWebhookForwarder(cfg.Listener.WebhookURL, appLogger)
	listener := notify.NewListener(subscriber, forwarder, cfg.Listener.Backoff, appLogger)

	return listener.Run(ctx)
}
