package postgres_test

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/yasu-888/monologue-muser/internal/domain/ledger"
	"github.com/yasu-888/monologue-muser/internal/infrastructure/postgres"
	"github.com/yasu-888/monologue-muser/internal/ledger"
)

var integration = flag.Bool("integration", false, "perform integration tests")

func TestConfig_DSN(t *testing.T) {
	cfg := postgres.Config{Host: "db", Port: "5432", User: "u", Password: "p@ss", DBName: "monologue"}

	assert.Equal(t, "postgres://u:p%40ss@db:5432/monologue?sslmode=disable", cfg.DSN())
}

func ledgerRepo(t *testing.T) *postgres.LedgerRepository {
	t.Helper()

	if !*integration {
		t.Skip("skipping integration tests")
	}
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	table := fmt.Sprintf("ledger_test_%d", time.Now().UnixNano())
	repo := postgres.NewLedgerRepository(pool, postgres.NewTxManager(pool), table)
	require.NoError(t, repo.EnsureSchema(ctx))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+table)
	})

	return repo
}

func TestLedgerRepository_ConcurrentAdmission(t *testing.T) {
	repo := ledgerRepo(t)
	svc := ledger.NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.TryStart(ctx, "race", "b", "o").OK() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	entries, err := repo.List(ctx, ledger.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLedgerRepository_Lifecycle(t *testing.T) {
	repo := ledgerRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := ledger.NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)),
		ledger.WithClock(func() time.Time { return now }))

	require.True(t, svc.TryStart(ctx, "id", "b", "o").OK())
	require.True(t, svc.MarkCompleted(ctx, "id", "b", "o").OK())

	e, err := repo.Get(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, e.Status)
	assert.Equal(t, now.Add(domain.Retention), *e.ExpireAt)

	assert.ErrorIs(t, repo.Release(ctx, "id", now.Add(time.Hour)), ledger.ErrNotFound)

	n, err := repo.PurgeExpired(ctx, now.Add(domain.Retention))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.Get(ctx, "id")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
