// Package config handles service configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Cache backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// Engine providers.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// maxBatchSize mirrors the engine's hard per-call cap.
const maxBatchSize = 16

// Config holds all service configuration
type Config struct {
	Port           int    `env:"PORT" envDefault:"8000"`
	Environment    string `env:"ENVIRONMENT" envDefault:"local"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`
	BatchSize      int    `env:"BATCH_SIZE" envDefault:"16"`
	TracesExporter string `env:"OTEL_TRACES_EXPORTER" envDefault:"none"`

	Cache  CacheConfig
	Model  ModelConfig
	Engine EngineConfig
}

// CacheConfig holds translation store settings
type CacheConfig struct {
	Backend       string        `env:"CACHE_BACKEND" envDefault:"redis"`
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	TTLSeconds    int           `env:"CACHE_TTL" envDefault:"2592000"`
	KeyPrefix     string        `env:"CACHE_KEY_PREFIX" envDefault:"translation:"`
	Timeout       time.Duration `env:"CACHE_TIMEOUT" envDefault:"2s"`
	SnapshotPath  string        `env:"CACHE_SNAPSHOT_PATH"` // memory backend only
}

// ModelConfig identifies the translation model
type ModelConfig struct {
	Name     string `env:"MODEL_NAME" envDefault:"facebook/nllb-200-distilled-600M"`
	CacheDir string `env:"MODEL_CACHE_DIR"`
}

// EngineConfig holds translation engine settings
type EngineConfig struct {
	Provider          string        `env:"ENGINE_PROVIDER" envDefault:"openai"`
	BaseURL           string        `env:"ENGINE_BASE_URL"`
	APIKey            string        `env:"ENGINE_API_KEY"`
	Timeout           time.Duration `env:"ENGINE_TIMEOUT" envDefault:"30s"`
	MaxConcurrency    int           `env:"ENGINE_MAX_CONCURRENCY" envDefault:"4"`
	RequestsPerMinute int           `env:"ENGINE_REQUESTS_PER_MINUTE" envDefault:"0"`
	MaxRetries        int           `env:"ENGINE_MAX_RETRIES" envDefault:"2"`
	Temperature       float32       `env:"ENGINE_TEMPERATURE" envDefault:"0.2"`
}

// Load reads configuration from the process environment, after applying a
// .env file from the working directory if one exists.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads configuration from the given variables only.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.BatchSize < 1 || c.BatchSize > maxBatchSize {
		errs = append(errs, fmt.Errorf("BATCH_SIZE must be between 1 and %d, got %d", maxBatchSize, c.BatchSize))
	}
	switch c.TracesExporter {
	case "none", "stdout":
	default:
		errs = append(errs, fmt.Errorf("OTEL_TRACES_EXPORTER must be none or stdout, got %q", c.TracesExporter))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}

	switch c.Cache.Backend {
	case BackendRedis, BackendMemory, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be redis, memory or none, got %q", c.Cache.Backend))
	}
	if c.Cache.TTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive, got %d", c.Cache.TTLSeconds))
	}
	if c.Cache.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TIMEOUT must be positive, got %s", c.Cache.Timeout))
	}
	if c.Cache.RedisPort < 1 || c.Cache.RedisPort > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be between 1 and 65535, got %d", c.Cache.RedisPort))
	}
	if c.Cache.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB must not be negative, got %d", c.Cache.RedisDB))
	}

	switch c.Engine.Provider {
	case ProviderOpenAI, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("ENGINE_PROVIDER must be openai or mock, got %q", c.Engine.Provider))
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("ENGINE_TIMEOUT must be positive, got %s", c.Engine.Timeout))
	}
	if c.Engine.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("ENGINE_MAX_CONCURRENCY must be at least 1, got %d", c.Engine.MaxConcurrency))
	}
	if c.Engine.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("ENGINE_REQUESTS_PER_MINUTE must not be negative, got %d", c.Engine.RequestsPerMinute))
	}
	if c.Engine.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("ENGINE_MAX_RETRIES must not be negative, got %d", c.Engine.MaxRetries))
	}

	return errors.Join(errs...)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RedisAddr returns the host:port of the Redis server.
func (c CacheConfig) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}
