package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yasu-888/monologue-muser/internal/api"
	"github.com/yasu-888/monologue-muser/internal/application/factories/infrastructure"
	"github.com/yasu-888/monologue-muser/internal/config"
	"github.com/yasu-888/monologue-muser/internal/usecase"

	"github.com/redis/go-redis/v9"
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

	objects, err := infraFactory.Storage(ctx)
	if err != nil {
		logger.Error("failed to init storage", "error", err)
		os.Exit(1)
	}

	// Redis is optional; without it Idempotency-Key is ignored.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = infraFactory.Redis(ctx)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
	}

	issueUploadURLUC := usecase.NewIssueUploadURL(objects, cfg.Storage.Bucket, cfg.Storage.SignedURLTTL)

	handlers := api.NewHandlers(issueUploadURLUC)
	apiHandler := api.NewUploaderRouter(handlers, redisClient, cfg.Storage.SignedURLTTL)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: apiHandler,
	}

	go func() {
		logger.Info("uploader starting", "port", cfg.HTTP.Port, "bucket", cfg.Storage.Bucket)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exiting")
}
