package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"dailyledger/internal/cli"
	apphttp "dailyledger/internal/http"
	"dailyledger/internal/log"
)

func main() {
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(bootstrap, nil)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	svc, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()
	if err := svc.Store().LoadErr(); err != nil {
		logger.Warn("Starting with an empty ledger", log.FieldError, err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		CurrencySymbol: cfg.CurrencySymbol,
		ReportCacheTTL: cfg.ReportCacheTTL,
		Logger:         logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ledger server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			log.FieldCount, svc.Store().Len(),
			log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
