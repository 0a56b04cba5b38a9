// Package config loads and validates application configuration from
// environment variables and optional config files.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and, when
// present, a config.yaml in the working directory. Environment
// variables take precedence and use the ASKSTREAM_ prefix with
// underscores for nesting (e.g. ASKSTREAM_REDIS_ADDR).
// Returns a populated Config or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// A missing config file is fine; env vars alone are enough.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("ASKSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not register nested keys on its own; bind the
	// ones we read so env-only deployments work.
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// configKeys lists every key read from the environment.
var configKeys = []string{
	"server.port",
	"server.log_level",
	"redis.addr",
	"redis.password",
	"redis.db",
	"redis.stream",
	"redis.group",
	"redis.results_channel",
	"database.url",
	"llm.gemini_api_key",
	"llm.model_name",
	"llm.prompt_template",
	"llm.max_retries",
	"worker.consumer",
	"worker.poll_block",
	"worker.retry_interval",
	"worker.reclaim_min_idle",
	"worker.reclaim_interval",
	"listener.webhook_url",
	"listener.backoff",
}

// setDefaults registers default values matching the source system's
// well-known keys and conservative loop timings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "tasks")
	v.SetDefault("redis.group", "workers")
	v.SetDefault("redis.results_channel", "results")

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)

	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.poll_block", "5s")
	v.SetDefault("worker.retry_interval", "2s")
	v.SetDefault("worker.reclaim_min_idle", "0s")
	v.SetDefault("worker.reclaim_interval", "30s")

	v.SetDefault("listener.backoff", "5s")
}
