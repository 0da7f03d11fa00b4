package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/yasu-888/monologue-muser/internal/domain/ledger"
)

type Outcome string

const (
	OutcomeAdmitted   Outcome = "admitted"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeCompleted  Outcome = "completed"
	OutcomeStoreError Outcome = "store_error"
)

// Result is the outcome of a ledger operation. Err is set only for
// OutcomeStoreError.
type Result struct {
	Outcome Outcome
	Err     error
}

// OK reports whether the caller may proceed.
func (r Result) OK() bool {
	return r.Outcome == OutcomeAdmitted || r.Outcome == OutcomeCompleted
}

type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRetention overrides domain.Retention. Non-positive values are ignored.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// Service admits events and records their completion.
type Service struct {
	store     Store
	logger    *slog.Logger
	now       func() time.Time
	retention time.Duration
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		logger:    logger,
		now:       time.Now,
		retention: domain.Retention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TryStart claims the right to process eventID. It succeeds only if no entry
// exists yet, whatever its status; the read and the create run in a single
// transaction so concurrent callers cannot both succeed.
func (s *Service) TryStart(ctx context.Context, eventID, bucket, object string) Result {
	var admitted bool

	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		admitted = false

		_, err := tx.Get(ctx, eventID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("get entry: %w", err)
		}

		err = tx.Create(ctx, domain.Entry{
			EventID:   eventID,
			Bucket:    bucket,
			Object:    object,
			Status:    domain.StatusProcessing,
			StartedAt: s.now().UTC(),
		})
		if errors.Is(err, ErrExists) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("create entry: %w", err)
		}

		admitted = true
		return nil
	})

	switch {
	case errors.Is(err, ErrExists):
		// Some backends only detect the conflict at commit time.
		admitted = false
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to start processing",
			"error", err, "collection", s.store.Collection(), "event_id", eventID)
		return Result{Outcome: OutcomeStoreError, Err: err}
	}

	if !admitted {
		s.logger.InfoContext(ctx, "event already processed or in progress",
			"collection", s.store.Collection(), "event_id", eventID)
		return Result{Outcome: OutcomeDuplicate}
	}

	s.logger.InfoContext(ctx, "processing started",
		"collection", s.store.Collection(), "event_id", eventID, "bucket", bucket, "object", object)
	return Result{Outcome: OutcomeAdmitted}
}

// MarkCompleted sets the entry to completed and stamps its expiry. Calling it
// again re-stamps completed_at and expire_at.
func (s *Service) MarkCompleted(ctx context.Context, eventID, bucket, object string) Result {
	completedAt := s.now().UTC()
	expireAt := completedAt.Add(s.retention)

	if err := s.store.MarkCompleted(ctx, eventID, completedAt, expireAt); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark processing completed",
			"error", err, "collection", s.store.Collection(), "event_id", eventID)
		return Result{Outcome: OutcomeStoreError, Err: err}
	}

	s.logger.InfoContext(ctx, "processing completed",
		"collection", s.store.Collection(), "event_id", eventID,
		"bucket", bucket, "object", object, "expire_at", expireAt.Format(time.RFC3339))
	return Result{Outcome: OutcomeCompleted}
}

// Retention is the expiry window applied by MarkCompleted.
func (s *Service) Retention() time.Duration {
	return s.retention
}
