// Package firestore stores the dedup ledger in a Firestore collection. Expiry
// is left to a Firestore TTL policy on the expire_at field.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/yasu-888/monologue-muser/internal/domain/ledger"
	"github.com/yasu-888/monologue-muser/internal/ledger"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type document struct {
	Bucket      string     `firestore:"bucket_name"`
	Object      string     `firestore:"file_name"`
	StartedAt   time.Time  `firestore:"started_at"`
	Status      string     `firestore:"status"`
	CompletedAt *time.Time `firestore:"completed_at,omitempty"`
	ExpireAt    *time.Time `firestore:"expire_at,omitempty"`
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (domain.Entry, error) {
	var doc document
	if err := snap.DataTo(&doc); err != nil {
		return domain.Entry{}, fmt.Errorf("decode %s: %w", snap.Ref.ID, err)
	}

	e := domain.Entry{
		EventID:   snap.Ref.ID,
		Bucket:    doc.Bucket,
		Object:    doc.Object,
		Status:    domain.Status(doc.Status),
		StartedAt: doc.StartedAt.UTC(),
	}
	if doc.CompletedAt != nil {
		t := doc.CompletedAt.UTC()
		e.CompletedAt = &t
	}
	if doc.ExpireAt != nil {
		t := doc.ExpireAt.UTC()
		e.ExpireAt = &t
	}
	return e, nil
}

type LedgerRepository struct {
	client *firestore.Client
	name   string
}

func NewLedgerRepository(client *firestore.Client, collection string) *LedgerRepository {
	return &LedgerRepository{client: client, name: collection}
}

func (r *LedgerRepository) doc(eventID string) *firestore.DocumentRef {
	return r.client.Collection(r.name).Doc(eventID)
}

type fsTx struct {
	repo *LedgerRepository
	tx   *firestore.Transaction
}

func (t fsTx) Get(_ context.Context, eventID string) (domain.Entry, error) {
	snap, err := t.tx.Get(t.repo.doc(eventID))
	if status.Code(err) == codes.NotFound {
		return domain.Entry{}, ledger.ErrNotFound
	}
	if err != nil {
		return domain.Entry{}, fmt.Errorf("get document: %w", err)
	}
	return fromSnapshot(snap)
}

// Create fails at commit with AlreadyExists if the document appeared meanwhile.
func (t fsTx) Create(_ context.Context, e domain.Entry) error {
	return t.tx.Create(t.repo.doc(e.EventID), document{
		Bucket:    e.Bucket,
		Object:    e.Object,
		StartedAt: e.StartedAt,
		Status:    string(e.Status),
	})
}

func (r *LedgerRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, fsTx{repo: r, tx: tx})
	})
	if status.Code(err) == codes.AlreadyExists {
		return ledger.ErrExists
	}
	return err
}

func (r *LedgerRepository) MarkCompleted(ctx context.Context, eventID string, completedAt, expireAt time.Time) error {
	_, err := r.doc(eventID).Update(ctx, []firestore.Update{
		{Path: "completed_at", Value: completedAt},
		{Path: "status", Value: string(domain.StatusCompleted)},
		{Path: "expire_at", Value: expireAt},
	})
	if status.Code(err) == codes.NotFound {
		return ledger.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Get(ctx context.Context, eventID string) (domain.Entry, error) {
	snap, err := r.doc(eventID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.Entry{}, ledger.ErrNotFound
	}
	if err != nil {
		return domain.Entry{}, fmt.Errorf("get document: %w", err)
	}
	return fromSnapshot(snap)
}

// List needs a composite index when both Status and StartedBefore are set.
func (r *LedgerRepository) List(ctx context.Context, filter ledger.ListFilter) ([]domain.Entry, error) {
	q := r.client.Collection(r.name).Query
	if filter.Status != "" {
		q = q.Where("status", "==", string(filter.Status))
	}
	if !filter.StartedBefore.IsZero() {
		q = q.Where("started_at", "<", filter.StartedBefore)
	}
	q = q.OrderBy("started_at", firestore.Desc)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var entries []domain.Entry
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		e, err := fromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Release deletes eventID only while it is still processing and started at or
// before startedBy.
func (r *LedgerRepository) Release(ctx context.Context, eventID string, startedBy time.Time) error {
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := r.doc(eventID)
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ledger.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get document: %w", err)
		}
		e, err := fromSnapshot(snap)
		if err != nil {
			return err
		}
		if e.Status != domain.StatusProcessing || e.StartedAt.After(startedBy) {
			return ledger.ErrNotFound
		}
		return tx.Delete(ref)
	})
}

func (r *LedgerRepository) Collection() string {
	return r.name
}

var (
	_ ledger.Store    = (*LedgerRepository)(nil)
	_ ledger.Releaser = (*LedgerRepository)(nil)
)
