// Package cli holds the start-up steps shared by cmd/caja, cmd/caja-worker
// and cmd/cajactl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"caja/internal/config"
	"caja/internal/log"
	"caja/internal/storage"
)

// SetupLogger builds the process logger at the given level and installs it
// as the slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits the process when it is invalid.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenGateway opens and migrates the ledger database or exits the process.
func OpenGateway(logger *log.Logger, dbPath string) *storage.Gateway {
	gw, err := storage.Open(dbPath)
	if err != nil {
		logger.WithComponent(log.ComponentStorage).Error("Failed to open ledger database", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	logger.WithComponent(log.ComponentStorage).Info("Ledger database ready", "path", dbPath)
	return gw
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. The
// signal is logged once; a second signal kills the process as usual.
func GracefulShutdown(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
