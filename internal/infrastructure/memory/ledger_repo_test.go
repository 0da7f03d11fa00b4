package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/yasu-888/monologue-muser/internal/domain/ledger"
	"github.com/yasu-888/monologue-muser/internal/ledger"
)

var started = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func processing(id string) domain.Entry {
	return domain.Entry{EventID: id, Bucket: "b", Object: id + ".aiff", Status: domain.StatusProcessing, StartedAt: started}
}

func TestRunInTransaction_FailedTransactionLeavesNoEntry(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()
	boom := errors.New("boom")

	err := repo.RunInTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		require.NoError(t, tx.Create(ctx, processing("a")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.Get(ctx, "a")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestRunInTransaction_SeesOwnAndCommittedWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()

	require.NoError(t, repo.RunInTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.Create(ctx, processing("a"))
	}))

	err := repo.RunInTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		assert.ErrorIs(t, tx.Create(ctx, processing("a")), ledger.ErrExists, "committed")

		require.NoError(t, tx.Create(ctx, processing("b")))
		assert.ErrorIs(t, tx.Create(ctx, processing("b")), ledger.ErrExists, "staged")

		e, err := tx.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "b.aiff", e.Object)
		return nil
	})
	require.NoError(t, err)

	entries, err := repo.List(ctx, ledger.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRelease_HonorsStatusAndCutoff(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()
	require.NoError(t, repo.RunInTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.Create(ctx, processing("a"))
	}))

	assert.ErrorIs(t, repo.Release(ctx, "a", started.Add(-time.Second)), ledger.ErrNotFound)
	assert.ErrorIs(t, repo.Release(ctx, "missing", started), ledger.ErrNotFound)

	require.NoError(t, repo.MarkCompleted(ctx, "a", started, started.Add(domain.Retention)))
	assert.ErrorIs(t, repo.Release(ctx, "a", started.Add(time.Hour)), ledger.ErrNotFound, "completed")

	require.NoError(t, repo.RunInTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.Create(ctx, processing("b"))
	}))
	require.NoError(t, repo.Release(ctx, "b", started))
	_, err := repo.Get(ctx, "b")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
