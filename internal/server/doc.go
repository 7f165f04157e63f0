// Package server provides HTTP server setup and initialization.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (CORS, metrics, recovery)
//   - Gateway REST client and kernelspec cache
//   - Session registry and dependency wiring
//   - WebSocket hub for events and kernel dialogs
//
// Server Lifecycle:
//  1. Load configuration from environment
//  2. Initialize logger (production or development)
//  3. Create gateway client and start the kernelspec refresher
//  4. Wire the session registry with its collaborators
//  5. Setup HTTP routes and middleware
//  6. Start HTTP server
//  7. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, log)
//	if err := srv.Run(cfg.Server.Host + ":" + cfg.Server.Port); err != nil {
//	    log.Fatal(err)
//	}
package server
