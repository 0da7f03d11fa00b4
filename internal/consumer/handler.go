// Package consumer drives the summarize pipeline from a Kafka topic of
// object-finalized notifications.
package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yasu-888/monologue-muser/internal/domain/event"
	"github.com/yasu-888/monologue-muser/internal/usecase"

	cloudevent "github.com/cloudevents/sdk-go/v2/event"
	"github.com/segmentio/kafka-go"
)

var ErrEmptyMessage = errors.New("consumer: empty message")

type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type RecordingProcessor interface {
	Execute(ctx context.Context, obj event.Object) usecase.Report
}

type Handler struct {
	source    MessageSource
	processor RecordingProcessor
	logger    *slog.Logger
}

func NewHandler(source MessageSource, processor RecordingProcessor, logger *slog.Logger) *Handler {
	return &Handler{
		source:    source,
		processor: processor,
		logger:    logger,
	}
}

// Run processes messages until ctx is cancelled. Each message is handled once
// and committed whatever the outcome; redelivery protection comes from the
// ledger, not from Kafka offsets.
func (h *Handler) Run(ctx context.Context) error {
	for {
		msg, err := h.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			h.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		h.handle(ctx, msg)

		if err := h.source.CommitMessages(ctx, msg); err != nil {
			h.logger.Error("failed to commit kafka message", "error", err, "partition", msg.Partition, "offset", msg.Offset)
		}
	}
}

func (h *Handler) handle(ctx context.Context, msg kafka.Message) {
	obj, err := Decode(msg.Value)
	if err != nil {
		// Not a storage notification (or corrupt). Commit and move on.
		h.logger.Error("failed to decode object event", "error", err, "partition", msg.Partition, "offset", msg.Offset)
		return
	}

	report := h.processor.Execute(ctx, obj)
	h.logger.Info("object event handled",
		"event_id", report.EventID, "status", report.Status, "message", report.Message,
		"partition", msg.Partition, "offset", msg.Offset)
}

// Decode accepts either a bare storage object or a structured-mode CloudEvent
// whose data is one.
func Decode(value []byte) (event.Object, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return event.Object{}, ErrEmptyMessage
	}

	var envelope struct {
		SpecVersion string `json:"specversion"`
	}
	if err := json.Unmarshal(value, &envelope); err != nil {
		return event.Object{}, fmt.Errorf("decode message: %w", err)
	}

	var obj event.Object
	if envelope.SpecVersion != "" {
		ce := cloudevent.New()
		if err := json.Unmarshal(value, &ce); err != nil {
			return event.Object{}, fmt.Errorf("decode cloudevent: %w", err)
		}
		if err := ce.DataAs(&obj); err != nil {
			return event.Object{}, fmt.Errorf("decode cloudevent data: %w", err)
		}
		return obj, nil
	}

	if err := json.Unmarshal(value, &obj); err != nil {
		return event.Object{}, fmt.Errorf("decode storage object: %w", err)
	}
	return obj, nil
}
