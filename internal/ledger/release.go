package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/yasu-888/monologue-muser/internal/domain/ledger"
)

var (
	// ErrNotStale is returned when an entry is completed or started too recently to release.
	ErrNotStale = errors.New("ledger: entry is not a stale processing entry")
	// ErrReleaseUnsupported is returned for stores that do not implement Releaser.
	ErrReleaseUnsupported = errors.New("ledger: store does not support release")
)

// ReleaseStale deletes a processing entry that started before now-olderThan,
// so that the next redelivery of its event is admitted again. Admission never
// does this on its own; it is an operator action for invocations that died
// mid-flight. Completed entries are never released.
func ReleaseStale(ctx context.Context, store Store, eventID string, olderThan time.Duration, now time.Time) (domain.Entry, error) {
	releaser, ok := store.(Releaser)
	if !ok {
		return domain.Entry{}, ErrReleaseUnsupported
	}

	cutoff := now.Add(-olderThan)

	entry, err := store.Get(ctx, eventID)
	if err != nil {
		return domain.Entry{}, err
	}
	if entry.Status != domain.StatusProcessing || entry.StartedAt.After(cutoff) {
		return entry, ErrNotStale
	}

	// The store re-checks status and cutoff while deleting, so an entry that
	// completed or was re-admitted since the read above is left alone.
	err = releaser.Release(ctx, eventID, cutoff)
	if errors.Is(err, ErrNotFound) {
		return entry, ErrNotStale
	}
	if err != nil {
		return entry, fmt.Errorf("release %s: %w", eventID, err)
	}
	return entry, nil
}
