package firestore_test

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

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/yasu-888/monologue-muser/internal/domain/ledger"
	fsrepo "github.com/yasu-888/monologue-muser/internal/infrastructure/firestore"
	"github.com/yasu-888/monologue-muser/internal/ledger"
)

var integration = flag.Bool("integration", false, "perform integration tests")

// emulatorRepo needs FIRESTORE_EMULATOR_HOST, e.g. from `gcloud emulators firestore start`.
func emulatorRepo(t *testing.T) *fsrepo.LedgerRepository {
	t.Helper()

	if !*integration {
		t.Skip("skipping integration tests")
	}
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	client, err := firestore.NewClient(context.Background(), "monologue-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return fsrepo.NewLedgerRepository(client, fmt.Sprintf("ledger_test_%d", time.Now().UnixNano()))
}

func TestLedgerRepository_ConcurrentAdmission(t *testing.T) {
	repo := emulatorRepo(t)
	svc := ledger.NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	const n = 8
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
}

func TestLedgerRepository_Lifecycle(t *testing.T) {
	repo := emulatorRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := ledger.NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)),
		ledger.WithClock(func() time.Time { return now }))

	require.True(t, svc.TryStart(ctx, "id", "b", "o").OK())

	e, err := repo.Get(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, e.Status)
	assert.Nil(t, e.ExpireAt)

	require.True(t, svc.MarkCompleted(ctx, "id", "b", "o").OK())

	e, err = repo.Get(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, e.Status)
	assert.True(t, now.Add(domain.Retention).Equal(*e.ExpireAt))
	assert.ErrorIs(t, repo.Release(ctx, "id", now.Add(time.Hour)), ledger.ErrNotFound)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
