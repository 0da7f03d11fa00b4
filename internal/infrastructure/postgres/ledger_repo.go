package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/yasu-888/monologue-muser/internal/domain/ledger"
	"github.com/yasu-888/monologue-muser/internal/ledger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
)

// LedgerRepository stores ledger entries in a Postgres table keyed by event_id.
type LedgerRepository struct {
	pool      *pgxpool.Pool
	txManager *TxManager
	table     string
	ident     string
}

func NewLedgerRepository(pool *pgxpool.Pool, txManager *TxManager, table string) *LedgerRepository {
	return &LedgerRepository{
		pool:      pool,
		txManager: txManager,
		table:     table,
		ident:     pgx.Identifier{table}.Sanitize(),
	}
}

// EnsureSchema creates the ledger table and its expiry index if missing.
func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			event_id     TEXT PRIMARY KEY,
			bucket_name  TEXT NOT NULL,
			file_name    TEXT NOT NULL,
			status       TEXT NOT NULL,
			started_at   TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			expire_at    TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (expire_at) WHERE expire_at IS NOT NULL;
	`, r.ident, pgx.Identifier{r.table + "_expire_at_idx"}.Sanitize())

	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

type pgLedgerTx struct {
	repo *LedgerRepository
	tx   pgx.Tx
}

func (t pgLedgerTx) Get(ctx context.Context, eventID string) (domain.Entry, error) {
	return t.repo.get(ctx, t.tx, eventID)
}

// Create inserts the entry unless one already exists for its event_id.
func (t pgLedgerTx) Create(ctx context.Context, e domain.Entry) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s (event_id, bucket_name, file_name, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`, t.repo.ident)

	tag, err := t.tx.Exec(ctx, sql, e.EventID, e.Bucket, e.Object, string(e.Status), e.StartedAt)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrExists
	}
	return nil
}

func (r *LedgerRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	err := r.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		tx := GetTx(txCtx)
		if tx == nil {
			return errors.New("no transaction in context")
		}
		return fn(txCtx, pgLedgerTx{repo: r, tx: tx})
	})
	return mapError(err)
}

func (r *LedgerRepository) MarkCompleted(ctx context.Context, eventID string, completedAt, expireAt time.Time) error {
	sql := fmt.Sprintf(`
		UPDATE %s
		SET completed_at = $2, status = $3, expire_at = $4
		WHERE event_id = $1
	`, r.ident)

	tag, err := r.pool.Exec(ctx, sql, eventID, completedAt, string(domain.StatusCompleted), expireAt)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *LedgerRepository) Get(ctx context.Context, eventID string) (domain.Entry, error) {
	return r.get(ctx, r.pool, eventID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectColumns = `event_id, bucket_name, file_name, status, started_at, completed_at, expire_at`

func (r *LedgerRepository) get(ctx context.Context, q querier, eventID string) (domain.Entry, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE event_id = $1`, selectColumns, r.ident)

	e, err := scanEntry(q.QueryRow(ctx, sql, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entry{}, ledger.ErrNotFound
	}
	if err != nil {
		return domain.Entry{}, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

func (r *LedgerRepository) List(ctx context.Context, filter ledger.ListFilter) ([]domain.Entry, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.StartedBefore.IsZero() {
		args = append(args, filter.StartedBefore)
		conds = append(conds, fmt.Sprintf("started_at < $%d", len(args)))
	}

	sql := fmt.Sprintf(`SELECT %s FROM %s`, selectColumns, r.ident)
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (r *LedgerRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE expire_at IS NOT NULL AND expire_at <= $1`, r.ident)

	tag, err := r.pool.Exec(ctx, sql, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *LedgerRepository) Release(ctx context.Context, eventID string, startedBy time.Time) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE event_id = $1 AND status = $2 AND started_at <= $3`, r.ident)

	tag, err := r.pool.Exec(ctx, sql, eventID, string(domain.StatusProcessing), startedBy)
	if err != nil {
		return fmt.Errorf("release entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *LedgerRepository) Collection() string {
	return r.table
}

func scanEntry(row pgx.Row) (domain.Entry, error) {
	var (
		e      domain.Entry
		status string
	)
	if err := row.Scan(&e.EventID, &e.Bucket, &e.Object, &status, &e.StartedAt, &e.CompletedAt, &e.ExpireAt); err != nil {
		return domain.Entry{}, err
	}
	e.Status = domain.Status(status)
	e.StartedAt = e.StartedAt.UTC()
	if e.CompletedAt != nil {
		t := e.CompletedAt.UTC()
		e.CompletedAt = &t
	}
	if e.ExpireAt != nil {
		t := e.ExpireAt.UTC()
		e.ExpireAt = &t
	}
	return e, nil
}

// mapError turns a lost insert race into ledger.ErrExists.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == uniqueViolation || pgErr.Code == serializationFailure) {
		return ledger.ErrExists
	}
	return err
}

var (
	_ ledger.Store    = (*LedgerRepository)(nil)
	_ ledger.Purger   = (*LedgerRepository)(nil)
	_ ledger.Releaser = (*LedgerRepository)(nil)
)
