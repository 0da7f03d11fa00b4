package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/yasu-888/monologue-muser/internal/domain/ledger"
	"github.com/yasu-888/monologue-muser/internal/ledger"
)

// LedgerRepository keeps ledger entries in process memory. Transactions hold
// a single lock, so they are fully serialized.
type LedgerRepository struct {
	mu      sync.Mutex
	entries map[string]domain.Entry
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{entries: make(map[string]domain.Entry)}
}

// memTx reads through to the live map and buffers creates in staged until
// the transaction function returns without error.
type memTx struct {
	live   map[string]domain.Entry
	staged map[string]domain.Entry
}

func (t *memTx) Get(_ context.Context, eventID string) (domain.Entry, error) {
	if e, ok := t.staged[eventID]; ok {
		return e, nil
	}
	e, ok := t.live[eventID]
	if !ok {
		return domain.Entry{}, ledger.ErrNotFound
	}
	return e, nil
}

func (t *memTx) Create(ctx context.Context, entry domain.Entry) error {
	if _, err := t.Get(ctx, entry.EventID); err == nil {
		return ledger.ErrExists
	}
	if t.staged == nil {
		t.staged = make(map[string]domain.Entry, 1)
	}
	t.staged[entry.EventID] = entry
	return nil
}

func (r *LedgerRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memTx{live: r.entries}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, e := range tx.staged {
		r.entries[id] = e
	}
	return nil
}

func (r *LedgerRepository) MarkCompleted(_ context.Context, eventID string, completedAt, expireAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[eventID]
	if !ok {
		return ledger.ErrNotFound
	}
	e.Status = domain.StatusCompleted
	e.CompletedAt = &completedAt
	e.ExpireAt = &expireAt
	r.entries[eventID] = e
	return nil
}

func (r *LedgerRepository) Get(_ context.Context, eventID string) (domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[eventID]
	if !ok {
		return domain.Entry{}, ledger.ErrNotFound
	}
	return e, nil
}

func (r *LedgerRepository) List(_ context.Context, filter ledger.ListFilter) ([]domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Entry
	for _, e := range r.entries {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *LedgerRepository) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, e := range r.entries {
		if e.Expired(now) {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}

func (r *LedgerRepository) Release(_ context.Context, eventID string, startedBy time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[eventID]
	if !ok || e.Status != domain.StatusProcessing || e.StartedAt.After(startedBy) {
		return ledger.ErrNotFound
	}
	delete(r.entries, eventID)
	return nil
}

func (r *LedgerRepository) Collection() string {
	return "memory"
}

var (
	_ ledger.Store    = (*LedgerRepository)(nil)
	_ ledger.Purger   = (*LedgerRepository)(nil)
	_ ledger.Releaser = (*LedgerRepository)(nil)
)
