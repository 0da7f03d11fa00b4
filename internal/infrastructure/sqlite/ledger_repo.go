// Package sqlite is a gorm-backed ledger store for single-node deployments
// and local development.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/yasu-888/monologue-muser/internal/domain/ledger"
	"github.com/yasu-888/monologue-muser/internal/ledger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type entryRecord struct {
	EventID     string     `gorm:"primaryKey"`
	BucketName  string     `gorm:"not null"`
	FileName    string     `gorm:"not null"`
	Status      string     `gorm:"not null;index"`
	StartedAt   time.Time  `gorm:"not null"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	ExpireAt    *time.Time `gorm:"index"`
}

func (r entryRecord) toDomain() domain.Entry {
	e := domain.Entry{
		EventID:   r.EventID,
		Bucket:    r.BucketName,
		Object:    r.FileName,
		Status:    domain.Status(r.Status),
		StartedAt: r.StartedAt.UTC(),
	}
	if r.CompletedAt != nil {
		t := r.CompletedAt.UTC()
		e.CompletedAt = &t
	}
	if r.ExpireAt != nil {
		t := r.ExpireAt.UTC()
		e.ExpireAt = &t
	}
	return e
}

// LedgerRepository keeps ledger entries in a SQLite table.
type LedgerRepository struct {
	db    *gorm.DB
	table string
}

// Open opens (or creates) the database at path and migrates the ledger table.
// The pool is limited to one connection so transactions never interleave.
func Open(path, table string) (*LedgerRepository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	repo := &LedgerRepository{db: db, table: table}
	if err := repo.scoped(context.Background()).AutoMigrate(&entryRecord{}); err != nil {
		return nil, fmt.Errorf("migrate ledger table: %w", err)
	}

	return repo, nil
}

func (r *LedgerRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *LedgerRepository) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.table)
}

type sqliteTx struct {
	db    *gorm.DB
	table string
}

func (t sqliteTx) Get(ctx context.Context, eventID string) (domain.Entry, error) {
	return get(t.db.WithContext(ctx).Table(t.table), eventID)
}

func (t sqliteTx) Create(ctx context.Context, e domain.Entry) error {
	rec := entryRecord{
		EventID:    e.EventID,
		BucketName: e.Bucket,
		FileName:   e.Object,
		Status:     string(e.Status),
		StartedAt:  e.StartedAt.UTC(),
	}

	res := t.db.WithContext(ctx).Table(t.table).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return fmt.Errorf("insert ledger entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ledger.ErrExists
	}
	return nil
}

func (r *LedgerRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, sqliteTx{db: tx, table: r.table})
	})
}

func (r *LedgerRepository) MarkCompleted(ctx context.Context, eventID string, completedAt, expireAt time.Time) error {
	res := r.scoped(ctx).Where("event_id = ?", eventID).Updates(map[string]any{
		"completed_at": completedAt.UTC(),
		"status":       string(domain.StatusCompleted),
		"expire_at":    expireAt.UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("mark completed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *LedgerRepository) Get(ctx context.Context, eventID string) (domain.Entry, error) {
	return get(r.scoped(ctx), eventID)
}

func get(db *gorm.DB, eventID string) (domain.Entry, error) {
	var rec entryRecord
	err := db.Where("event_id = ?", eventID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Entry{}, ledger.ErrNotFound
	}
	if err != nil {
		return domain.Entry{}, fmt.Errorf("get ledger entry: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *LedgerRepository) List(ctx context.Context, filter ledger.ListFilter) ([]domain.Entry, error) {
	q := r.scoped(ctx).Order("started_at DESC")
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if !filter.StartedBefore.IsZero() {
		q = q.Where("started_at < ?", filter.StartedBefore.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var recs []entryRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}

	entries := make([]domain.Entry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, rec.toDomain())
	}
	return entries, nil
}

func (r *LedgerRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.scoped(ctx).Where("expire_at IS NOT NULL AND expire_at <= ?", now.UTC()).Delete(&entryRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge expired: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *LedgerRepository) Release(ctx context.Context, eventID string, startedBy time.Time) error {
	res := r.scoped(ctx).
		Where("event_id = ? AND status = ? AND started_at <= ?", eventID, string(domain.StatusProcessing), startedBy.UTC()).
		Delete(&entryRecord{})
	if res.Error != nil {
		return fmt.Errorf("release entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *LedgerRepository) Collection() string {
	return r.table
}

var (
	_ ledger.Store    = (*LedgerRepository)(nil)
	_ ledger.Purger   = (*LedgerRepository)(nil)
	_ ledger.Releaser = (*LedgerRepository)(nil)
)
