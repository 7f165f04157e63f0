package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8400", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Gateway config
	assert.Equal(t, "http://localhost:8888", cfg.Gateway.BaseURL)
	assert.Equal(t, "ws://localhost:8888", cfg.Gateway.WSURL)
	assert.Equal(t, 30*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 2, cfg.Gateway.RetryCount)
	assert.Equal(t, 5*time.Minute, cfg.Gateway.SpecsRefresh)

	// Session config
	assert.False(t, cfg.Session.ShutdownOnDispose)
	assert.Equal(t, "notebook", cfg.Session.DefaultType)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default when no env vars set
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8400", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                 "9000",
		"HOST":                 "127.0.0.1",
		"GATEWAY_URL":          "http://gateway:8888",
		"GATEWAY_WS_URL":       "ws://gateway:8888",
		"GATEWAY_TOKEN":        "secret",
		"GATEWAY_TIMEOUT":      "10s",
		"KERNELSPECS_REFRESH":  "1m",
		"SHUTDOWN_ON_DISPOSE":  "true",
		"SESSION_TYPE":         "console",
		"LOG_LEVEL":            "debug",
		"LOG_DEV":              "true",
	}

	for key, value := range envVars {
		os.Setenv(key, value)
	}
	defer func() {
		for key := range envVars {
			os.Unsetenv(key)
		}
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "http://gateway:8888", cfg.Gateway.BaseURL)
	assert.Equal(t, "ws://gateway:8888", cfg.Gateway.WSURL)
	assert.Equal(t, "secret", cfg.Gateway.Token)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, time.Minute, cfg.Gateway.SpecsRefresh)
	assert.True(t, cfg.Session.ShutdownOnDispose)
	assert.Equal(t, "console", cfg.Session.DefaultType)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}
