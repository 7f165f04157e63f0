package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/SessionOS/backend/internal/config"
	"github.com/GriffinCanCode/SessionOS/backend/internal/logging"
	"github.com/GriffinCanCode/SessionOS/backend/internal/server"
)

func main() {
	cfg := config.LoadOrDefault()

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(cfg.Server.Host + ":" + cfg.Server.Port); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		logger.Info("Shutting down gracefully")
		if err := srv.Close(); err != nil {
			logger.Error("Error during shutdown")
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
