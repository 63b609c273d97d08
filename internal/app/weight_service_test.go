package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fitsync/internal/app"
	"fitsync/internal/domain"
)

func TestRecordWeight_Validation(t *testing.T) {
	svc := app.NewWeightService(newMockCache(), &mockQueuer{owner: "u"})

	tests := []struct {
		name  string
		value float64
		unit  string
	}{
		{"zero value", 0, "kg"},
		{"negative value", -5, "kg"},
		{"bad unit", 80, "stones"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.RecordWeight(context.Background(), tc.value, tc.unit)
			if err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRecordWeight_WritesCacheThenQueues(t *testing.T) {
	cache := newMockCache()
	q := &mockQueuer{owner: "u"}
	svc := app.NewWeightService(cache, q)

	got, today, err := svc.RecordWeight(context.Background(), 80, "kg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if today == "" {
		t.Fatal("expected today string")
	}
	if got == nil || got.Payload.(domain.WeightLog).Value != 80 {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.SyncStatus != domain.StatusPending || got.Owner != "u" {
		t.Errorf("expected pending record owned by u, got %+v", got)
	}

	calls := q.calls()
	if len(calls) != 1 || calls[0].op != domain.OpInsert || calls[0].rec.ID != got.ID {
		t.Fatalf("unexpected queued changes: %+v", calls)
	}
}

func TestRecordWeight_CacheError(t *testing.T) {
	cache := newMockCache()
	cache.saveFn = func(context.Context, domain.Record) error { return errors.New("disk full") }
	q := &mockQueuer{owner: "u"}
	svc := app.NewWeightService(cache, q)

	if _, _, err := svc.RecordWeight(context.Background(), 80, "kg"); err == nil {
		t.Fatal("expected error from cache")
	}
	if len(q.calls()) != 0 {
		t.Error("nothing should be queued when the cache write fails")
	}
}

func TestRecordWeight_NoOwner(t *testing.T) {
	svc := app.NewWeightService(newMockCache(), &mockQueuer{})
	_, _, err := svc.RecordWeight(context.Background(), 80, "kg")
	if !errors.Is(err, app.ErrNoOwner) {
		t.Fatalf("expected ErrNoOwner, got %v", err)
	}
}

func TestUndoLastWeight(t *testing.T) {
	cache := newMockCache()
	q := &mockQueuer{owner: "u"}
	svc := app.NewWeightService(cache, q)
	ctx := context.Background()

	first, _, _ := svc.RecordWeight(ctx, 80, "kg")
	time.Sleep(2 * time.Millisecond)
	second, _, _ := svc.RecordWeight(ctx, 81, "kg")

	deleted, entry, _, err := svc.UndoLast(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatal("expected deleted=true")
	}
	if entry == nil || entry.ID != first.ID {
		t.Fatalf("expected first entry to be latest again, got %+v", entry)
	}

	tomb, _ := cache.GetRecord(ctx, domain.KindWeightLog, second.ID)
	if tomb == nil || !tomb.IsDeleted || !tomb.Pending() {
		t.Fatalf("expected pending tombstone, got %+v", tomb)
	}
	calls := q.calls()
	if last := calls[len(calls)-1]; last.op != domain.OpDelete || last.rec.ID != second.ID {
		t.Errorf("expected delete to be queued, got %+v", last)
	}

	items, _ := svc.ListRecent(ctx, 10)
	if len(items) != 1 {
		t.Errorf("tombstones must be hidden, got %d items", len(items))
	}
}

func TestUndoLastWeight_Empty(t *testing.T) {
	svc := app.NewWeightService(newMockCache(), &mockQueuer{owner: "u"})
	deleted, entry, _, err := svc.UndoLast(context.Background())
	if err != nil || deleted || entry != nil {
		t.Fatalf("expected nothing to undo, got %v %+v %v", deleted, entry, err)
	}
}

func TestListRecentWeight_Error(t *testing.T) {
	cache := newMockCache()
	cache.listFn = func(context.Context, domain.Kind, string) ([]domain.Record, error) {
		return nil, errors.New("db down")
	}
	svc := app.NewWeightService(cache, &mockQueuer{owner: "u"})
	_, err := svc.ListRecent(context.Background(), 10)
	if err == nil {
		t.Fatal("expected error")
	}
}
