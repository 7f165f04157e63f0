// Package http provides HTTP handlers and routing for the session REST API.
//
// This package implements all HTTP endpoints using the Gin framework,
// including health checks, session lifecycle operations and kernelspec
// inspection.
//
// Endpoints:
//   - Health: / and /health
//   - Sessions: /sessions (list, create), /session?path= (get, delete)
//   - Operations: /session/change-kernel, /session/select-kernel,
//     /session/restart, /session/shutdown (all keyed by ?path=)
//   - Kernelspecs: /kernelspecs
//
// Example Usage:
//
//	handlers := http.NewHandlers(registry, specs, metrics, onCreate)
//	router.GET("/health", handlers.Health)
//	router.POST("/sessions", handlers.CreateSession)
package http
