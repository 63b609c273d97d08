// Package memory implements in-memory stores for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"fitsync/internal/domain"
)

// DB is an in-memory local cache and queue store.
type DB struct {
	mu      sync.Mutex
	records map[domain.RecordKey]domain.Record
	queue   []domain.QueuedChange

	failSaves bool
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		records: make(map[domain.RecordKey]domain.Record),
	}
}

// Ensure interfaces are met.
var _ domain.LocalCache = (*DB)(nil)
var _ domain.QueueStore = (*DB)(nil)

// ErrStorageUnavailable is returned by SaveQueue after SetFailSaves(true).
var ErrStorageUnavailable = errors.New("storage unavailable")

// --- LocalCache ---

// SaveRecord stores a record, replacing any record with the same key.
func (db *DB) SaveRecord(ctx context.Context, r domain.Record) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.records[r.Key()] = r
	return nil
}

// GetRecord returns the record or nil.
func (db *DB) GetRecord(ctx context.Context, kind domain.Kind, id string) (*domain.Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r, ok := db.records[domain.RecordKey{Kind: kind, ID: id}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// DeleteRecord removes a record. Missing records are not an error.
func (db *DB) DeleteRecord(ctx context.Context, kind domain.Kind, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.records, domain.RecordKey{Kind: kind, ID: id})
	return nil
}

// ListRecords returns the owner's records of kind, tombstones included,
// ordered by id.
func (db *DB) ListRecords(ctx context.Context, kind domain.Kind, owner string) ([]domain.Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []domain.Record
	for k, r := range db.records {
		if k.Kind == kind && r.Owner == owner {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UnsyncedRecords returns every pending record, ordered by update time.
func (db *DB) UnsyncedRecords(ctx context.Context) ([]domain.Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []domain.Record
	for _, r := range db.records {
		if r.Pending() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

// --- QueueStore ---

// LoadQueue returns a copy of the stored queue.
func (db *DB) LoadQueue(ctx context.Context) ([]domain.QueuedChange, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]domain.QueuedChange, len(db.queue))
	copy(out, db.queue)
	return out, nil
}

// SaveQueue replaces the stored queue.
func (db *DB) SaveQueue(ctx context.Context, changes []domain.QueuedChange) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.failSaves {
		return ErrStorageUnavailable
	}
	db.queue = make([]domain.QueuedChange, len(changes))
	copy(db.queue, changes)
	return nil
}

// SetFailSaves toggles SaveQueue failures.
func (db *DB) SetFailSaves(fail bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failSaves = fail
}
