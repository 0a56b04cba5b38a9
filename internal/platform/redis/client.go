// Package redis provides the Redis-backed implementations of the
// durable queue, the status store, and the notification bus.
package redis

import (
	"context"
	"fmt"
	"time"

	r "github.com/redis/go-redis/v9"

	"github.com/phrazzld/askstream/internal/config"
)

// NewClient creates a Redis client from configuration and verifies
// connectivity with a bounded ping.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*r.Client, error) {
	client := r.NewClient(&r.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}
