package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/yasu-888/monologue-muser/internal/application/factories/infrastructure"
	"github.com/yasu-888/monologue-muser/internal/config"
	"github.com/yasu-888/monologue-muser/internal/ledger"
	"github.com/yasu-888/monologue-muser/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg, logger)
	defer infraFactory.Close()

	store, err := infraFactory.Ledger(ctx)
	if err != nil {
		logger.Error("failed to init ledger", "error", err)
		os.Exit(1)
	}

	purger, ok := store.(ledger.Purger)
	if !ok {
		logger.Info("ledger backend expires entries natively, nothing to do", "backend", cfg.Ledger.Backend)
		return
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("janitor metrics listening", "port", cfg.HTTP.Port)
		if err := http.ListenAndServe(":"+cfg.HTTP.Port, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	if err := worker.NewJanitor(purger, cfg.Janitor.Interval, logger).Run(ctx); err != nil {
		logger.Error("janitor stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("janitor exiting")
}
