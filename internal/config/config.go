package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Gateway   GatewayConfig
	Session   SessionConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8400"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// GatewayConfig holds session gateway configuration.
type GatewayConfig struct {
	BaseURL      string        `envconfig:"GATEWAY_URL" default:"http://localhost:8888"`
	WSURL        string        `envconfig:"GATEWAY_WS_URL" default:"ws://localhost:8888"`
	Token        string        `envconfig:"GATEWAY_TOKEN"`
	Timeout      time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
	RetryCount   int           `envconfig:"GATEWAY_RETRIES" default:"2"`
	SpecsRefresh time.Duration `envconfig:"KERNELSPECS_REFRESH" default:"5m"`
}

// SessionConfig holds default session behavior.
type SessionConfig struct {
	ShutdownOnDispose bool   `envconfig:"SHUTDOWN_ON_DISPOSE" default:"false"`
	DefaultType       string `envconfig:"SESSION_TYPE" default:"notebook"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-client request rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8400",
			Host: "0.0.0.0",
		},
		Gateway: GatewayConfig{
			BaseURL:      "http://localhost:8888",
			WSURL:        "ws://localhost:8888",
			Timeout:      30 * time.Second,
			RetryCount:   2,
			SpecsRefresh: 5 * time.Minute,
		},
		Session: SessionConfig{
			DefaultType: "notebook",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
