package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"    validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Listener ListenerConfig `mapstructure:"listener"`
}

// ServerConfig contains all gateway server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// RedisConfig contains the connection settings and the well-known key
// names for the queue stream, consumer group, and results channel.
type RedisConfig struct {
	Addr           string `mapstructure:"addr"            validate:"required"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"              validate:"gte=0"`
	Stream         string `mapstructure:"stream"          validate:"required"`
	Group          string `mapstructure:"group"           validate:"required"`
	ResultsChannel string `mapstructure:"results_channel" validate:"required"`
}

// DatabaseConfig contains the task archive database settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// LLMConfig contains the answer engine integration settings. The
// fields are validated by the engine constructor rather than here,
// because only the worker binary needs them.
type LLMConfig struct {
	GeminiAPIKey   string `mapstructure:"gemini_api_key"`
	ModelName      string `mapstructure:"model_name"`
	PromptTemplate string `mapstructure:"prompt_template"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// WorkerConfig contains the consumer loop settings.
type WorkerConfig struct {
	// Consumer is this worker's identity within the consumer group.
	// Two live workers must never share a consumer name.
	Consumer string `mapstructure:"consumer" validate:"required"`

	// PollBlock bounds how long a single queue read may block before
	// returning empty so the loop can observe cancellation.
	PollBlock time.Duration `mapstructure:"poll_block" validate:"required"`

	// RetryInterval is the fixed sleep after a transient queue error.
	RetryInterval time.Duration `mapstructure:"retry_interval" validate:"required"`

	// ReclaimMinIdle enables the pending-entry reclaim pass when
	// positive: entries pending longer than this are re-delivered to
	// this consumer. Zero disables reclaim.
	ReclaimMinIdle time.Duration `mapstructure:"reclaim_min_idle"`

	// ReclaimInterval is how often the reclaim pass runs when enabled.
	ReclaimInterval time.Duration `mapstructure:"reclaim_interval"`
}

// ListenerConfig contains the notification listener settings.
type ListenerConfig struct {
	// WebhookURL is where completed results are forwarded.
	WebhookURL string `mapstructure:"webhook_url"`

	// Backoff is the fixed wait before resubscribing after a
	// transport error.
	Backoff time.Duration `mapstructure:"backoff"`
}
