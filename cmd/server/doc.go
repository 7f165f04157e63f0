// Package main is the entry point for the SessionOS backend server.
//
// This application fronts a Jupyter-compatible gateway, managing the
// lifecycle of compute sessions on behalf of connected clients.
//
// The server provides:
//   - REST API for session and kernel lifecycle
//   - WebSocket streaming of session events and kernel dialogs
//   - Kernelspec catalog with background refresh
//   - Prometheus metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - Defaults for development
//
// Usage:
//
//	PORT=8400 GATEWAY_URL=http://localhost:8888 ./server
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
