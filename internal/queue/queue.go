// Package queue implements the ordered, durable list of local mutations that
// still have to reach the remote store.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fitsync/internal/domain"
)

// ErrNotPersisted wraps storage failures. The in-memory queue is still
// updated when it is returned.
var ErrNotPersisted = errors.New("change queue not persisted")

// Queue keeps changes in enqueue order and writes the whole queue to its
// store after every mutation.
type Queue struct {
	store domain.QueueStore

	mu    sync.Mutex
	items []domain.QueuedChange
	// stored holds the ids present in the store after the last successful
	// load or save. Changes outside it were never written.
	stored map[string]struct{}

	// persistMu serializes snapshot+save so an older snapshot never
	// overwrites a newer one.
	persistMu sync.Mutex
}

// New creates an empty queue backed by store. Call LoadAll to restore the
// persisted queue.
func New(store domain.QueueStore) *Queue {
	return &Queue{store: store}
}

// LoadAll replaces the in-memory queue with the persisted one. Changes that
// never reached the store stay queued after the loaded ones, in their order,
// and the merged queue is persisted again. On error the in-memory queue is
// left untouched.
func (q *Queue) LoadAll(ctx context.Context) error {
	items, err := q.store.LoadQueue(ctx)
	if err != nil {
		return fmt.Errorf("load change queue: %w", err)
	}
	loaded := idSet(items)

	q.mu.Lock()
	unsaved := 0
	for _, c := range q.items {
		_, wasStored := q.stored[c.ID]
		_, isLoaded := loaded[c.ID]
		if !wasStored && !isLoaded {
			items = append(items, c)
			unsaved++
		}
	}
	q.items = items
	q.stored = loaded
	q.mu.Unlock()

	if unsaved == 0 {
		return nil
	}
	return q.Persist(ctx)
}

// Append adds a change at the tail and persists the queue.
func (q *Queue) Append(ctx context.Context, c domain.QueuedChange) error {
	if c.ID == "" {
		return errors.New("queued change has no id")
	}
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
	return q.Persist(ctx)
}

// RemoveByIDs drops the changes with the given ids and persists the queue.
func (q *Queue) RemoveByIDs(ctx context.Context, ids ...string) error {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	q.mu.Lock()
	kept := q.items[:0:0]
	for _, c := range q.items {
		if _, ok := drop[c.ID]; !ok {
			kept = append(kept, c)
		}
	}
	changed := len(kept) != len(q.items)
	q.items = kept
	q.mu.Unlock()
	if !changed {
		return nil
	}
	return q.Persist(ctx)
}

// Get returns the queued change with the given id.
func (q *Queue) Get(id string) (domain.QueuedChange, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.items {
		if c.ID == id {
			return c, true
		}
	}
	return domain.QueuedChange{}, false
}

// SetRetryCount records the attempts made for a change. Its record is left
// as it is, so a concurrent Rebase is kept.
func (q *Queue) SetRetryCount(ctx context.Context, id string, n int) error {
	q.mu.Lock()
	found := false
	for i := range q.items {
		if q.items[i].ID == id {
			q.items[i].RetryCount = n
			found = true
			break
		}
	}
	q.mu.Unlock()
	if !found {
		return nil
	}
	return q.Persist(ctx)
}

// Rebase points every queued insert or update of rec's key at rec's payload,
// keeping each change's own origin. It returns the number of changes touched.
func (q *Queue) Rebase(ctx context.Context, rec domain.Record) (int, error) {
	key := rec.Key()
	q.mu.Lock()
	n := 0
	for i := range q.items {
		c := &q.items[i]
		if c.Record.Key() != key || c.Op == domain.OpDelete {
			continue
		}
		origin := c.Record.Origin
		c.Record = rec
		c.Record.Origin = origin
		c.Record.SyncStatus = domain.StatusPending
		n++
	}
	q.mu.Unlock()
	if n == 0 {
		return 0, nil
	}
	return n, q.Persist(ctx)
}

// Persist writes the current queue to the store.
func (q *Queue) Persist(ctx context.Context) error {
	q.persistMu.Lock()
	defer q.persistMu.Unlock()

	snapshot := q.Snapshot()
	if err := q.store.SaveQueue(ctx, snapshot); err != nil {
		return fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}
	q.mu.Lock()
	q.stored = idSet(snapshot)
	q.mu.Unlock()
	return nil
}

func idSet(changes []domain.QueuedChange) map[string]struct{} {
	ids := make(map[string]struct{}, len(changes))
	for _, c := range changes {
		ids[c.ID] = struct{}{}
	}
	return ids
}

// Snapshot returns a copy of the queue in order.
func (q *Queue) Snapshot() []domain.QueuedChange {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.QueuedChange, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued changes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Has reports whether any queued change targets the record.
func (q *Queue) Has(key domain.RecordKey) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.items {
		if c.Record.Key() == key {
			return true
		}
	}
	return false
}

// Keys returns the set of records with at least one queued change.
func (q *Queue) Keys() map[domain.RecordKey]struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	keys := make(map[domain.RecordKey]struct{}, len(q.items))
	for _, c := range q.items {
		keys[c.Record.Key()] = struct{}{}
	}
	return keys
}
