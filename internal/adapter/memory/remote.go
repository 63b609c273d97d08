package memory

import (
	"context"
	"sort"
	"sync"

	"fitsync/internal/domain"
	"fitsync/internal/feed"
)

// Remote is an in-memory remote store that also serves as a change feed
// transport. Every write is published to the owner's subscribers.
type Remote struct {
	mu          sync.Mutex
	rows        map[domain.RecordKey]domain.Record
	subscribers map[string]map[int]chan feed.Notification
	nextSub     int
}

// NewRemote creates an empty remote store.
func NewRemote() *Remote {
	return &Remote{
		rows:        make(map[domain.RecordKey]domain.Record),
		subscribers: make(map[string]map[int]chan feed.Notification),
	}
}

var _ domain.RemoteStore = (*Remote)(nil)
var _ feed.Transport = (*Remote)(nil)

// Select returns the owner's rows of kind ordered by id.
func (r *Remote) Select(ctx context.Context, kind domain.Kind, owner string) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Record
	for k, row := range r.rows {
		if k.Kind == kind && row.Owner == owner {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Insert adds a row; it fails with domain.ErrConflict if the id exists.
func (r *Remote) Insert(ctx context.Context, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	if _, ok := r.rows[rec.Key()]; ok {
		r.mu.Unlock()
		return domain.ErrConflict
	}
	r.write(feed.EventInsert, rec, domain.Record{})
	return nil
}

// Update replaces an owned row; it fails with domain.ErrNotFound otherwise.
func (r *Remote) Update(ctx context.Context, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	old, ok := r.rows[rec.Key()]
	if !ok || old.Owner != rec.Owner {
		r.mu.Unlock()
		return domain.ErrNotFound
	}
	r.write(feed.EventUpdate, rec, old)
	return nil
}

// Upsert inserts or replaces a row.
func (r *Remote) Upsert(ctx context.Context, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	old, ok := r.rows[rec.Key()]
	if ok && old.Owner != rec.Owner {
		r.mu.Unlock()
		return domain.ErrConflict
	}
	event := feed.EventInsert
	if ok {
		event = feed.EventUpdate
	}
	r.write(event, rec, old)
	return nil
}

// Delete removes an owned row; it fails with domain.ErrNotFound otherwise.
func (r *Remote) Delete(ctx context.Context, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	old, ok := r.rows[rec.Key()]
	if !ok || old.Owner != rec.Owner {
		r.mu.Unlock()
		return domain.ErrNotFound
	}
	delete(r.rows, rec.Key())
	subs := r.subscribersOf(rec.Owner)
	r.mu.Unlock()

	old.Origin = rec.Origin
	publish(subs, feed.EventDelete, domain.Record{}, old, rec.Origin)
	return nil
}

// Row returns a stored row, for tests.
func (r *Remote) Row(kind domain.Kind, id string) (domain.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[domain.RecordKey{Kind: kind, ID: id}]
	return row, ok
}

// Listen implements feed.Transport.
func (r *Remote) Listen(ctx context.Context, owner string, ready func(), deliver func(feed.Notification)) error {
	ch := make(chan feed.Notification, 64)
	r.mu.Lock()
	if r.subscribers[owner] == nil {
		r.subscribers[owner] = make(map[int]chan feed.Notification)
	}
	id := r.nextSub
	r.nextSub++
	r.subscribers[owner][id] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.subscribers[owner], id)
		r.mu.Unlock()
	}()

	ready()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-ch:
			deliver(n)
		}
	}
}

// write stores rec and publishes the change. It is called with r.mu held and
// releases it.
func (r *Remote) write(event string, rec, old domain.Record) {
	rec.SyncStatus = domain.StatusSynced
	r.rows[rec.Key()] = rec
	subs := r.subscribersOf(rec.Owner)
	r.mu.Unlock()

	publish(subs, event, rec, old, rec.Origin)
}

func (r *Remote) subscribersOf(owner string) []chan feed.Notification {
	var subs []chan feed.Notification
	for _, ch := range r.subscribers[owner] {
		subs = append(subs, ch)
	}
	return subs
}

func publish(subs []chan feed.Notification, event string, rec, old domain.Record, origin string) {
	if len(subs) == 0 {
		return
	}
	kind := rec.Kind()
	if kind == "" {
		kind = old.Kind()
	}
	n := feed.Notification{Event: event, Table: kind.Table(), Origin: origin}
	if rec.Payload != nil {
		n.Record, _ = domain.MarshalRow(rec)
	}
	if old.Payload != nil {
		n.OldRecord, _ = domain.MarshalRow(old)
	}
	for _, ch := range subs {
		select {
		case ch <- n:
		default:
		}
	}
}
