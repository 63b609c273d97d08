package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"fitsync/internal/domain"
	"fitsync/internal/feed"
)

func weightRecord(id, owner string, status domain.SyncStatus) domain.Record {
	return domain.Record{
		ID:         id,
		Owner:      owner,
		SyncStatus: status,
		UpdatedAt:  time.Now().UTC(),
		Payload:    domain.WeightLog{Value: 70, Unit: "kg"},
	}
}

func TestLocalCache(t *testing.T) {
	db := New()
	ctx := context.Background()

	// Save and read back
	if err := db.SaveRecord(ctx, weightRecord("a", "user-1", domain.StatusPending)); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if err := db.SaveRecord(ctx, weightRecord("b", "user-1", domain.StatusSynced)); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if err := db.SaveRecord(ctx, weightRecord("c", "user-2", domain.StatusSynced)); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	got, err := db.GetRecord(ctx, domain.KindWeightLog, "a")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got == nil || got.Owner != "user-1" {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Same id under another kind is a different record
	missing, err := db.GetRecord(ctx, domain.KindProfile, "a")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", missing, err)
	}

	list, _ := db.ListRecords(ctx, domain.KindWeightLog, "user-1")
	if len(list) != 2 {
		t.Errorf("expected 2 records for user-1, got %d", len(list))
	}

	unsynced, _ := db.UnsyncedRecords(ctx)
	if len(unsynced) != 1 || unsynced[0].ID != "a" {
		t.Errorf("unexpected unsynced records: %+v", unsynced)
	}

	// Delete
	if err := db.DeleteRecord(ctx, domain.KindWeightLog, "a"); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if got, _ := db.GetRecord(ctx, domain.KindWeightLog, "a"); got != nil {
		t.Error("expected record to be gone")
	}
}

func TestQueueStore(t *testing.T) {
	db := New()
	ctx := context.Background()

	changes := []domain.QueuedChange{{ID: "1"}, {ID: "2"}}
	if err := db.SaveQueue(ctx, changes); err != nil {
		t.Fatalf("SaveQueue: %v", err)
	}
	changes[0].ID = "mutated"

	loaded, err := db.LoadQueue(ctx)
	if err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	if len(loaded) != 2 || loaded[0].ID != "1" {
		t.Errorf("unexpected queue: %+v", loaded)
	}

	db.SetFailSaves(true)
	if err := db.SaveQueue(ctx, nil); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestRemote_WriteSemantics(t *testing.T) {
	r := NewRemote()
	ctx := context.Background()
	rec := weightRecord("a", "user-1", domain.StatusPending)

	if err := r.Update(ctx, rec); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("update of missing row: expected ErrNotFound, got %v", err)
	}
	if err := r.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := r.Insert(ctx, rec); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate insert: expected ErrConflict, got %v", err)
	}
	rec.Payload = domain.WeightLog{Value: 71, Unit: "kg"}
	if err := r.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rows, _ := r.Select(ctx, domain.KindWeightLog, "user-1")
	if len(rows) != 1 || rows[0].Payload.(domain.WeightLog).Value != 71 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].SyncStatus != domain.StatusSynced {
		t.Error("expected stored rows to be synced")
	}

	other := rec
	other.Owner = "user-2"
	if err := r.Delete(ctx, other); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("delete by other owner: expected ErrNotFound, got %v", err)
	}
	if err := r.Delete(ctx, rec); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := r.Row(domain.KindWeightLog, "a"); ok {
		t.Error("expected row to be deleted")
	}
}

func TestRemote_PublishesToOwnerSubscribers(t *testing.T) {
	r := NewRemote()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	got := make(chan feed.Notification, 4)
	done := make(chan error, 1)
	go func() {
		done <- r.Listen(ctx, "user-1", func() { close(ready) }, func(n feed.Notification) { got <- n })
	}()
	<-ready

	rec := weightRecord("a", "user-1", domain.StatusPending)
	rec.Origin = "session-a"
	_ = r.Insert(ctx, rec)
	_ = r.Insert(ctx, weightRecord("b", "user-2", domain.StatusPending))
	_ = r.Delete(ctx, rec)

	for _, want := range []string{feed.EventInsert, feed.EventDelete} {
		select {
		case n := <-got:
			if n.Event != want || n.Table != "weight_logs" || n.Origin != "session-a" {
				t.Errorf("unexpected notification: %+v", n)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	select {
	case n := <-got:
		t.Errorf("unexpected extra notification: %+v", n)
	default:
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Listen: %v", err)
	}
}
