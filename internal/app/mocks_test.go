package app_test

import (
	"context"
	"sync"

	"fitsync/internal/adapter/memory"
	"fitsync/internal/domain"
)

// mockQueuer records queued changes instead of syncing them.
type mockQueuer struct {
	owner string

	mu      sync.Mutex
	changes []queuedCall
}

type queuedCall struct {
	op  domain.Operation
	rec domain.Record
}

func (m *mockQueuer) Owner() string { return m.owner }

func (m *mockQueuer) QueueChange(op domain.Operation, rec domain.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, queuedCall{op: op, rec: rec})
}

func (m *mockQueuer) calls() []queuedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queuedCall(nil), m.changes...)
}

// mockCache wraps the in-memory cache with optional failures (function-fields pattern).
type mockCache struct {
	*memory.DB
	saveFn func(ctx context.Context, r domain.Record) error
	listFn func(ctx context.Context, kind domain.Kind, owner string) ([]domain.Record, error)
}

func newMockCache() *mockCache {
	return &mockCache{DB: memory.New()}
}

func (m *mockCache) SaveRecord(ctx context.Context, r domain.Record) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, r)
	}
	return m.DB.SaveRecord(ctx, r)
}

func (m *mockCache) ListRecords(ctx context.Context, kind domain.Kind, owner string) ([]domain.Record, error) {
	if m.listFn != nil {
		return m.listFn(ctx, kind, owner)
	}
	return m.DB.ListRecords(ctx, kind, owner)
}
