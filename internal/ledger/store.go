// Package ledger implements exactly-once admission of object events on top of
// a transactional store.
package ledger

import (
	"context"
	"errors"
	"time"

	domain "github.com/yasu-888/monologue-muser/internal/domain/ledger"
)

var (
	// ErrNotFound is returned when no entry exists for an event identifier.
	ErrNotFound = errors.New("ledger: entry not found")
	// ErrExists is returned by Tx.Create when an entry already exists,
	// including one created by a concurrent transaction.
	ErrExists = errors.New("ledger: entry already exists")
)

// Tx is the read/write view of the store inside one transaction.
type Tx interface {
	Get(ctx context.Context, eventID string) (domain.Entry, error)
	Create(ctx context.Context, entry domain.Entry) error
}

// Store is a transactional store holding one entry per event identifier.
type Store interface {
	// RunInTransaction executes fn atomically. Backends may run fn more than
	// once when they retry on contention.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// MarkCompleted updates completed_at, status and expire_at in one write,
	// leaving every other field untouched.
	MarkCompleted(ctx context.Context, eventID string, completedAt, expireAt time.Time) error
	Get(ctx context.Context, eventID string) (domain.Entry, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Entry, error)
	// Collection names the table or collection, for diagnostics.
	Collection() string
}

type ListFilter struct {
	Status        domain.Status
	StartedBefore time.Time
	Limit         int
}

// Purger is implemented by stores without a native TTL policy.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Releaser deletes eventID only while it is processing and started at or
// before startedBy, checked in the same write that deletes it. Otherwise it
// returns ErrNotFound. It is an operator override only.
type Releaser interface {
	Release(ctx context.Context, eventID string, startedBy time.Time) error
}

// Matches reports whether entry satisfies the filter, ignoring Limit.
func (f ListFilter) Matches(entry domain.Entry) bool {
	if f.Status != "" && entry.Status != f.Status {
		return false
	}
	if !f.StartedBefore.IsZero() && !entry.StartedAt.Before(f.StartedBefore) {
		return false
	}
	return true
}
