// Package config provides 12-factor configuration management for the backend.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Gateway: Session gateway connection settings (URLs, token, timeouts)
//   - Session: Defaults applied to new sessions
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - GATEWAY_URL, GATEWAY_WS_URL, GATEWAY_TOKEN, GATEWAY_TIMEOUT
//   - KERNELSPECS_REFRESH, SHUTDOWN_ON_DISPOSE, SESSION_TYPE
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
