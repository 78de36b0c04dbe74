// Package cli holds the start-up steps shared by cmd/ledger,
// cmd/ledger-worker and cmd/ledger-export.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dailyledger/internal/backend"
	"dailyledger/internal/config"
	"dailyledger/internal/ledger"
	"dailyledger/internal/log"
	"dailyledger/internal/services"

	"github.com/joho/godotenv"
)

// SetupLogger builds the stdout logger, text or JSON, at the given level and
// makes it the process default.
func SetupLogger(level, format string) *log.Logger {
	logger := log.New(log.Config{
		Component: log.ComponentApp,
		Level:     log.ParseLevel(level),
		Format:    format,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger, validate func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if validate == nil {
		validate = (*config.Config).Validate
	}
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenLedger creates the configured backend, loads the ledger from it and
// wraps it in a LedgerService. A failed load is logged and the service still
// starts, empty. Closing the service releases the backend.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (*services.LedgerService, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	store, err := ledger.Open(ctx, res.Backend, ledger.WithLogger(logger))
	var loadErr *ledger.LoadError
	if err != nil && !errors.As(err, &loadErr) {
		res.Close()
		return nil, err
	}

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithCloser(res),
	}
	if res.Publisher != nil {
		opts = append(opts, services.WithPublisher(res.Publisher, res.Repo))
	}
	return services.NewLedgerService(store, opts...), nil
}

// SignalContext returns a context carrying logger, cancelled on SIGINT or
// SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(log.NewContext(context.Background(), logger), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	}()
	return ctx, stop
}
