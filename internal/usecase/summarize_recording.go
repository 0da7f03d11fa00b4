package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/yasu-888/monologue-muser/internal/domain/event"
	"github.com/yasu-888/monologue-muser/internal/domain/note"
	"github.com/yasu-888/monologue-muser/internal/domain/recording"
	"github.com/yasu-888/monologue-muser/internal/eventid"
	"github.com/yasu-888/monologue-muser/internal/ledger"
)

type Admitter interface {
	TryStart(ctx context.Context, eventID, bucket, object string) ledger.Result
	MarkCompleted(ctx context.Context, eventID, bucket, object string) ledger.Result
}

type ObjectStore interface {
	Download(ctx context.Context, bucket, object, dst string) error
	Delete(ctx context.Context, bucket, object string) error
}

// Summarizer returns a degraded note instead of failing.
type Summarizer interface {
	Summarize(ctx context.Context, path string) note.Note
}

type Publisher interface {
	Publish(ctx context.Context, title, markdown, nextActionsMarkdown string, tags []string) error
}

type Status string

const (
	StatusCompleted       Status = "completed"
	StatusDuplicate       Status = "duplicate"
	StatusAdmissionFailed Status = "admission_failed"
	StatusInvalidEvent    Status = "invalid_event"
	StatusDownloadFailed  Status = "download_failed"
	StatusPublishFailed   Status = "publish_failed"
)

// Report is the outcome of handling one object event.
type Report struct {
	EventID            string `json:"event_id,omitempty"`
	Status             Status `json:"status"`
	Message            string `json:"message"`
	CompletionRecorded bool   `json:"completion_recorded"`
}

type SummarizeRecordingConfig struct {
	TempDir          string
	KeyWithEventTime bool
}

// SummarizeRecording turns an uploaded recording into a published note, at
// most once per event identifier.
type SummarizeRecording struct {
	ledger     Admitter
	objects    ObjectStore
	summarizer Summarizer
	publisher  Publisher
	cfg        SummarizeRecordingConfig
	logger     *slog.Logger
}

func NewSummarizeRecording(
	admitter Admitter,
	objects ObjectStore,
	summarizer Summarizer,
	publisher Publisher,
	cfg SummarizeRecordingConfig,
	logger *slog.Logger,
) *SummarizeRecording {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &SummarizeRecording{
		ledger:     admitter,
		objects:    objects,
		summarizer: summarizer,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
	}
}

func (uc *SummarizeRecording) Execute(ctx context.Context, obj event.Object) Report {
	report := uc.execute(ctx, obj)
	recordingsProcessed.WithLabelValues(string(report.Status)).Inc()
	return report
}

func (uc *SummarizeRecording) execute(ctx context.Context, obj event.Object) Report {
	if err := eventid.Validate(obj.Bucket, obj.Name); err != nil {
		uc.logger.ErrorContext(ctx, "invalid object event", "error", err, "bucket", obj.Bucket, "object", obj.Name)
		return Report{Status: StatusInvalidEvent, Message: err.Error()}
	}

	var eventTime string
	if uc.cfg.KeyWithEventTime {
		eventTime = obj.EventTime()
	}
	eventID := eventid.Derive(obj.Bucket, obj.Name, eventTime)
	logger := uc.logger.With("event_id", eventID, "bucket", obj.Bucket, "object", obj.Name)
	logger.InfoContext(ctx, "event identifier derived")

	switch res := uc.ledger.TryStart(ctx, eventID, obj.Bucket, obj.Name); res.Outcome {
	case ledger.OutcomeAdmitted:
	case ledger.OutcomeDuplicate:
		logger.InfoContext(ctx, "skipping event already processed or in progress")
		return Report{EventID: eventID, Status: StatusDuplicate, Message: "event already processed or in progress"}
	default:
		return Report{EventID: eventID, Status: StatusAdmissionFailed, Message: fmt.Sprintf("could not admit event: %v", res.Err)}
	}

	started := time.Now()
	logger.InfoContext(ctx, "processing new recording")

	workDir, err := os.MkdirTemp(uc.cfg.TempDir, "recording-*")
	if err != nil {
		logger.ErrorContext(ctx, "failed to create work directory", "error", err)
		return Report{EventID: eventID, Status: StatusDownloadFailed, Message: fmt.Sprintf("create work directory: %v", err)}
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.WarnContext(ctx, "failed to remove local file", "error", err, "dir", workDir)
		}
	}()
	localPath := filepath.Join(workDir, path.Base(obj.Name))

	if err := uc.objects.Download(ctx, obj.Bucket, obj.Name, localPath); err != nil {
		logger.ErrorContext(ctx, "failed to download recording", "error", err)
		return Report{EventID: eventID, Status: StatusDownloadFailed, Message: fmt.Sprintf("download failed: %v", err)}
	}

	n := uc.summarizer.Summarize(ctx, localPath)
	if n.Degraded {
		degradedNotes.Inc()
		logger.WarnContext(ctx, "publishing degraded note", "tags", n.Tags)
	}

	title := recording.Title(obj.Name)
	if err := uc.publisher.Publish(ctx, title, n.Markdown, n.NextActionsMarkdown(), n.Tags); err != nil {
		logger.ErrorContext(ctx, "failed to publish note", "error", err, "title", title)
		return Report{EventID: eventID, Status: StatusPublishFailed, Message: fmt.Sprintf("publish failed: %v", err)}
	}

	if err := uc.objects.Delete(ctx, obj.Bucket, obj.Name); err != nil {
		logger.WarnContext(ctx, "failed to delete recording", "error", err)
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		logger.WarnContext(ctx, "failed to remove local file", "error", err, "path", localPath)
	}

	report := Report{EventID: eventID, Status: StatusCompleted, Message: "processing completed"}
	if res := uc.ledger.MarkCompleted(ctx, eventID, obj.Bucket, obj.Name); res.OK() {
		report.CompletionRecorded = true
	} else {
		completionMarkFailures.Inc()
		logger.WarnContext(ctx, "failed to record completion; a redelivery will be processed again", "error", res.Err)
		report.Message = "processing completed, but completion could not be recorded"
	}

	processingDuration.Observe(time.Since(started).Seconds())
	logger.InfoContext(ctx, "recording processed", "completion_recorded", report.CompletionRecorded, "degraded", n.Degraded)
	return report
}
