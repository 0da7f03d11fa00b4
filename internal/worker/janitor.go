package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yasu-888/monologue-muser/internal/ledger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "janitor_ledger_entries_purged_total",
		Help: "The total number of expired ledger entries deleted",
	})
	purgeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "janitor_purge_errors_total",
		Help: "The total number of failed purge sweeps",
	})
)

var ErrInvalidInterval = errors.New("janitor: interval must be positive")

// Janitor deletes ledger entries whose expire_at has passed. It stands in for
// a native TTL policy on stores that lack one; nothing else deletes entries.
type Janitor struct {
	purger   ledger.Purger
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewJanitor(purger ledger.Purger, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		purger:   purger,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	if j.interval <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidInterval, j.interval)
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("janitor started", "interval", j.interval.String())

	for {
		if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error("failed to purge expired entries", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	n, err := j.purger.PurgeExpired(ctx, j.now().UTC())
	if err != nil {
		purgeErrors.Inc()
		return 0, err
	}

	if n > 0 {
		entriesPurged.Add(float64(n))
		j.logger.Info("purged expired ledger entries", "count", n)
	}
	return n, nil
}
