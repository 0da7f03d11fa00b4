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
	"github.com/yasu-888/monologue-muser/internal/consumer"
	"github.com/yasu-888/monologue-muser/internal/infrastructure/kafka"

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

	// Metrics Server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("consumer metrics listening", "port", cfg.Kafka.MetricsPort)
		if err := http.ListenAndServe(":"+cfg.Kafka.MetricsPort, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	infraFactory := infrastructure.NewFactory(cfg, logger)
	defer infraFactory.Close()

	summarizeUC, err := infraFactory.SummarizeRecording(ctx)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	kafkaConsumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		GroupID:     cfg.Kafka.GroupID,
		StartOffset: cfg.Kafka.StartOffset,
	})
	defer kafkaConsumer.Close()

	logger.Info("consumer started", "topic", cfg.Kafka.Topic, "group_id", cfg.Kafka.GroupID)

	if err := consumer.NewHandler(kafkaConsumer, summarizeUC, logger).Run(ctx); err != nil {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("consumer exiting")
}
