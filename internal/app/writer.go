package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"fitsync/internal/domain"
)

// ErrNoOwner is returned by write use cases before an owner is bound.
var ErrNoOwner = errors.New("no owner bound")

// recordNamespace derives stable ids for records that exist once per owner
// and day, so every device writes the same row.
var recordNamespace = uuid.MustParse("6f1c2a47-8d0e-4b5a-9c3f-2e7d1b6a4f90")

// ChangeQueuer is the part of the SyncManager the tracking services use.
type ChangeQueuer interface {
	Owner() string
	QueueChange(op domain.Operation, rec domain.Record)
}

// recordWriter applies local writes optimistically: the cache is updated
// first, then the change is queued for the remote store.
type recordWriter struct {
	cache domain.LocalCache
	sync  ChangeQueuer
	now   func() time.Time
}

func newRecordWriter(cache domain.LocalCache, sync ChangeQueuer) recordWriter {
	return recordWriter{cache: cache, sync: sync, now: time.Now}
}

func (w recordWriter) owner() (string, error) {
	owner := w.sync.Owner()
	if owner == "" {
		return "", ErrNoOwner
	}
	return owner, nil
}

func (w recordWriter) put(ctx context.Context, op domain.Operation, rec domain.Record) (domain.Record, error) {
	owner, err := w.owner()
	if err != nil {
		return domain.Record{}, err
	}
	rec.Owner = owner
	rec.UpdatedAt = w.now().UTC()
	rec.SyncStatus = domain.StatusPending
	rec.IsDeleted = op == domain.OpDelete
	if err := w.cache.SaveRecord(ctx, rec); err != nil {
		return domain.Record{}, err
	}
	w.sync.QueueChange(op, rec)
	return rec, nil
}

// save inserts rec, or updates it when the cache already holds it.
func (w recordWriter) save(ctx context.Context, rec domain.Record) (domain.Record, error) {
	cur, err := w.cache.GetRecord(ctx, rec.Kind(), rec.ID)
	if err != nil {
		return domain.Record{}, err
	}
	op := domain.OpInsert
	if cur != nil {
		op = domain.OpUpdate
	}
	return w.put(ctx, op, rec)
}

func (w recordWriter) remove(ctx context.Context, rec domain.Record) error {
	_, err := w.put(ctx, domain.OpDelete, rec)
	return err
}

// live returns the owner's records of kind, skipping tombstones.
func (w recordWriter) live(ctx context.Context, kind domain.Kind) ([]domain.Record, error) {
	owner, err := w.owner()
	if err != nil {
		return nil, err
	}
	recs, err := w.cache.ListRecords(ctx, kind, owner)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if !r.IsDeleted {
			out = append(out, r)
		}
	}
	return out, nil
}

// get returns a live record or nil.
func (w recordWriter) get(ctx context.Context, kind domain.Kind, id string) (*domain.Record, error) {
	rec, err := w.cache.GetRecord(ctx, kind, id)
	if err != nil || rec == nil || rec.IsDeleted {
		return nil, err
	}
	return rec, nil
}

func stableID(owner string, kind domain.Kind, key string) string {
	return uuid.NewSHA1(recordNamespace, []byte(owner+"/"+string(kind)+"/"+key)).String()
}

func localDay(t time.Time) string {
	return t.In(time.Local).Format("2006-01-02")
}
