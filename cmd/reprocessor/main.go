// Package main provides the entry point for the job reprocessing sweep.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ehking/social-admin/internal/bootstrap"
	"github.com/ehking/social-admin/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting job reprocessor",
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("job_log_dir", cfg.JobLogDir),
		slog.String("storage_backend", cfg.StorageBackend),
		slog.Bool("database_configured", cfg.DatabaseURL != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	if err := deps.Worker.Sweep(); err != nil {
		logger.Warn("failed to sweep leftover worker directories",
			slog.String("error", err.Error()),
		)
	}

	if err := deps.Reprocessor.Run(ctx); err != nil {
		return fmt.Errorf("reprocessing pass: %w", err)
	}

	logger.Info("reprocessing pass finished")
	return nil
}
