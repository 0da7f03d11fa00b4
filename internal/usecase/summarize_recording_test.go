package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yasu-888/monologue-muser/internal/domain/event"
	domain "github.com/yasu-888/monologue-muser/internal/domain/ledger"
	"github.com/yasu-888/monologue-muser/internal/domain/note"
	"github.com/yasu-888/monologue-muser/internal/eventid"
	"github.com/yasu-888/monologue-muser/internal/infrastructure/memory"
	"github.com/yasu-888/monologue-muser/internal/ledger"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubObjects struct {
	downloadErr error
	deleteErr   error
	downloads   int
	deletes     int
	lastPath    string
}

func (s *stubObjects) Download(_ context.Context, _, _, dst string) error {
	s.downloads++
	s.lastPath = dst
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(dst, []byte("FORM...AIFF"), 0o600)
}

func (s *stubObjects) Delete(context.Context, string, string) error {
	s.deletes++
	return s.deleteErr
}

type stubSummarizer struct {
	note       note.Note
	calls      int
	fileExists bool
}

func (s *stubSummarizer) Summarize(_ context.Context, path string) note.Note {
	s.calls++
	_, err := os.Stat(path)
	s.fileExists = err == nil
	return s.note
}

type published struct {
	title, markdown, nextActions string
	tags                         []string
}

type stubPublisher struct {
	err   error
	calls []published
}

func (s *stubPublisher) Publish(_ context.Context, title, markdown, nextActions string, tags []string) error {
	s.calls = append(s.calls, published{title, markdown, nextActions, tags})
	return s.err
}

type failingCompletion struct {
	*ledger.Service
}

func (failingCompletion) MarkCompleted(context.Context, string, string, string) ledger.Result {
	return ledger.Result{Outcome: ledger.OutcomeStoreError, Err: errors.New("unavailable")}
}

type fixture struct {
	store      *memory.LedgerRepository
	objects    *stubObjects
	summarizer *stubSummarizer
	publisher  *stubPublisher
	uc         *SummarizeRecording
}

func newFixture(t *testing.T, opts ...func(*fixture)) *fixture {
	t.Helper()

	f := &fixture{
		store:   memory.NewLedgerRepository(),
		objects: &stubObjects{},
		summarizer: &stubSummarizer{note: note.Note{
			Markdown:    "### 話題\n内容",
			NextActions: []string{"試す"},
			Tags:        []string{"AI"},
		}},
		publisher: &stubPublisher{},
	}
	for _, opt := range opts {
		opt(f)
	}

	var admitter Admitter = ledger.NewService(f.store, discard)
	f.uc = NewSummarizeRecording(admitter, f.objects, f.summarizer, f.publisher,
		SummarizeRecordingConfig{TempDir: t.TempDir()}, discard)
	return f
}

var ideas = event.Object{Bucket: "b", Name: "20240101_ab12cd34_ideas.aiff"}

func TestSummarizeRecording_RedeliveryIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.uc.Execute(ctx, ideas)
	assert.Equal(t, StatusCompleted, first.Status)
	assert.True(t, first.CompletionRecorded)
	assert.Equal(t, eventid.Derive("b", ideas.Name, ""), first.EventID)

	require.Len(t, f.publisher.calls, 1)
	assert.Equal(t, published{
		title:       "ideas",
		markdown:    "### 話題\n内容",
		nextActions: "### NextActions\n- 試す",
		tags:        []string{"AI"},
	}, f.publisher.calls[0])
	assert.Equal(t, 1, f.objects.downloads)
	assert.Equal(t, 1, f.summarizer.calls)
	assert.Equal(t, 1, f.objects.deletes)
	assert.True(t, f.summarizer.fileExists)

	_, err := os.Stat(f.objects.lastPath)
	assert.True(t, os.IsNotExist(err), "local file must be removed")

	entry, err := f.store.Get(ctx, first.EventID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, entry.Status)

	second := f.uc.Execute(ctx, ideas)
	assert.Equal(t, StatusDuplicate, second.Status)
	assert.Equal(t, first.EventID, second.EventID)
	assert.Equal(t, 1, f.objects.downloads)
	assert.Equal(t, 1, f.summarizer.calls)
	assert.Len(t, f.publisher.calls, 1)
	assert.Equal(t, 1, f.objects.deletes)
}

func TestSummarizeRecording_DegradedNoteIsPublished(t *testing.T) {
	degraded := note.Note{Markdown: "# error\n\nsomething broke", Tags: []string{note.ErrorTag}, Degraded: true}
	f := newFixture(t, func(f *fixture) { f.summarizer.note = degraded })

	report := f.uc.Execute(context.Background(), ideas)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.True(t, report.CompletionRecorded)
	require.Len(t, f.publisher.calls, 1)
	assert.Equal(t, "# error\n\nsomething broke", f.publisher.calls[0].markdown)
	assert.Equal(t, "", f.publisher.calls[0].nextActions)
	assert.Equal(t, []string{"error"}, f.publisher.calls[0].tags)
}

func TestSummarizeRecording_DownloadFailureStopsPipeline(t *testing.T) {
	f := newFixture(t, func(f *fixture) { f.objects.downloadErr = errors.New("403") })
	ctx := context.Background()

	report := f.uc.Execute(ctx, ideas)

	assert.Equal(t, StatusDownloadFailed, report.Status)
	assert.False(t, report.CompletionRecorded)
	assert.Zero(t, f.summarizer.calls)
	assert.Empty(t, f.publisher.calls)
	assert.Zero(t, f.objects.deletes)

	entry, err := f.store.Get(ctx, report.EventID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, entry.Status)
}

func TestSummarizeRecording_PublishFailureSkipsCleanupAndCompletion(t *testing.T) {
	f := newFixture(t, func(f *fixture) { f.publisher.err = errors.New("status 400") })
	ctx := context.Background()

	report := f.uc.Execute(ctx, ideas)

	assert.Equal(t, StatusPublishFailed, report.Status)
	assert.Zero(t, f.objects.deletes)

	_, err := os.Stat(f.objects.lastPath)
	assert.True(t, os.IsNotExist(err), "local file must be removed")

	entry, err := f.store.Get(ctx, report.EventID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, entry.Status)
}

func TestSummarizeRecording_DeleteFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, func(f *fixture) { f.objects.deleteErr = errors.New("permission denied") })

	report := f.uc.Execute(context.Background(), ideas)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.True(t, report.CompletionRecorded)
}

func TestSummarizeRecording_CompletionFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.uc.ledger = failingCompletion{ledger.NewService(f.store, discard)}

	report := f.uc.Execute(context.Background(), ideas)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.False(t, report.CompletionRecorded)
	assert.Len(t, f.publisher.calls, 1)
}

type brokenAdmitter struct{}

func (brokenAdmitter) TryStart(context.Context, string, string, string) ledger.Result {
	return ledger.Result{Outcome: ledger.OutcomeStoreError, Err: errors.New("unavailable")}
}

func (brokenAdmitter) MarkCompleted(context.Context, string, string, string) ledger.Result {
	panic("must not be called")
}

func TestSummarizeRecording_AdmissionErrorSkipsEverything(t *testing.T) {
	f := newFixture(t)
	f.uc.ledger = brokenAdmitter{}

	report := f.uc.Execute(context.Background(), ideas)

	assert.Equal(t, StatusAdmissionFailed, report.Status)
	assert.Contains(t, report.Message, "unavailable")
	assert.Zero(t, f.objects.downloads)
	assert.Zero(t, f.summarizer.calls)
	assert.Empty(t, f.publisher.calls)
}

func TestSummarizeRecording_InvalidEvent(t *testing.T) {
	f := newFixture(t)

	report := f.uc.Execute(context.Background(), event.Object{Bucket: "b"})

	assert.Equal(t, StatusInvalidEvent, report.Status)
	assert.Empty(t, report.EventID)
	assert.Zero(t, f.objects.downloads)
}

func TestSummarizeRecording_KeyWithEventTime(t *testing.T) {
	f := newFixture(t)
	f.uc.cfg.KeyWithEventTime = true
	obj := ideas
	obj.TimeCreated = "2024-01-01T00:00:00.000Z"

	report := f.uc.Execute(context.Background(), obj)

	assert.Equal(t, eventid.Derive("b", ideas.Name, "2024-01-01T00:00:00.000Z"), report.EventID)
	assert.NotEqual(t, eventid.Derive("b", ideas.Name, ""), report.EventID)
}
