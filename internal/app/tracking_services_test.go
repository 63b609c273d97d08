package app_test

import (
	"context"
	"testing"

	"fitsync/internal/app"
	"fitsync/internal/domain"
)

func TestDailyMetric_AddWater(t *testing.T) {
	cache := newMockCache()
	q := &mockQueuer{owner: "u"}
	svc := app.NewDailyMetricService(cache, q)
	ctx := context.Background()

	tests := []struct {
		name    string
		delta   float64
		want    float64
		wantErr bool
	}{
		{"first glass", 0.5, 0.5, false},
		{"second glass", 0.25, 0.75, false},
		{"undo below zero clamps", -2, 0, false},
		{"zero rejected", 0, 0, true},
		{"too large rejected", 11, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.AddWater(ctx, tc.delta)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected validation error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.WaterLiters != tc.want {
				t.Errorf("expected %v liters, got %v", tc.want, got.WaterLiters)
			}
		})
	}

	calls := q.calls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 queued changes, got %d", len(calls))
	}
	if calls[0].op != domain.OpInsert || calls[1].op != domain.OpUpdate {
		t.Errorf("expected insert then update, got %s, %s", calls[0].op, calls[1].op)
	}
	if calls[0].rec.ID != calls[2].rec.ID {
		t.Error("one record per day expected")
	}
}

func TestDailyMetric_SetSteps(t *testing.T) {
	svc := app.NewDailyMetricService(newMockCache(), &mockQueuer{owner: "u"})
	ctx := context.Background()
	if _, err := svc.SetSteps(ctx, -1); err == nil {
		t.Fatal("expected validation error")
	}
	got, err := svc.SetSteps(ctx, 8421)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Steps != 8421 {
		t.Errorf("expected 8421 steps, got %d", got.Steps)
	}
	hist, err := svc.History(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hist) != 2 || hist[1].Steps != 8421 || hist[0].Steps != 0 {
		t.Errorf("unexpected history: %+v", hist)
	}
}

func TestDailyMetric_SameDayIDAcrossDevices(t *testing.T) {
	q := &mockQueuer{owner: "u"}
	a := app.NewDailyMetricService(newMockCache(), q)
	b := app.NewDailyMetricService(newMockCache(), q)
	ctx := context.Background()
	_, _ = a.SetSteps(ctx, 100)
	_, _ = b.SetSteps(ctx, 200)

	calls := q.calls()
	if calls[0].rec.ID != calls[1].rec.ID {
		t.Error("devices must address the same daily record")
	}
}

func TestBodyMetric_RecordMergesSameDate(t *testing.T) {
	cache := newMockCache()
	q := &mockQueuer{owner: "u"}
	svc := app.NewBodyMetricService(cache, q)
	ctx := context.Background()

	fat, waist := 18.2, 82.0
	if _, err := svc.Record(ctx, domain.BodyMetric{Date: "2026-05-01", BodyFatPercent: &fat}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := svc.Record(ctx, domain.BodyMetric{Date: "2026-05-01", WaistCm: &waist})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bm := rec.Payload.(domain.BodyMetric)
	if bm.BodyFatPercent == nil || *bm.BodyFatPercent != 18.2 || bm.WaistCm == nil || *bm.WaistCm != 82 {
		t.Errorf("expected merged measurements, got %+v", bm)
	}

	list, _ := svc.List(ctx)
	if len(list) != 1 {
		t.Fatalf("expected one record, got %d", len(list))
	}

	ok, err := svc.Delete(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("expected delete, got %v %v", ok, err)
	}
	if list, _ := svc.List(ctx); len(list) != 0 {
		t.Errorf("expected tombstone to be hidden, got %d records", len(list))
	}
	if ok, _ := svc.Delete(ctx, rec.ID); ok {
		t.Error("second delete should report false")
	}
}

func TestBodyMetric_Validation(t *testing.T) {
	svc := app.NewBodyMetricService(newMockCache(), &mockQueuer{owner: "u"})
	bad := 120.0
	for _, m := range []domain.BodyMetric{
		{Date: "yesterday"},
		{Date: "2026-05-01", BodyFatPercent: &bad},
	} {
		if _, err := svc.Record(context.Background(), m); err == nil {
			t.Errorf("expected validation error for %+v", m)
		}
	}
}

func TestProfile_UpdateOverlaysSetFields(t *testing.T) {
	q := &mockQueuer{owner: "u"}
	svc := app.NewProfileService(newMockCache(), q)
	ctx := context.Background()

	if got, _ := svc.Get(ctx); got != nil {
		t.Fatalf("expected no profile, got %+v", got)
	}
	height := 178.0
	if _, err := svc.Update(ctx, domain.Profile{DisplayName: "Sam", HeightCm: &height}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := svc.Update(ctx, domain.Profile{PreferredUnit: "lb"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := rec.Payload.(domain.Profile)
	if p.DisplayName != "Sam" || p.PreferredUnit != "lb" || p.HeightCm == nil {
		t.Errorf("unexpected profile: %+v", p)
	}
	if rec.ID != "u" {
		t.Errorf("profile id should be the owner, got %q", rec.ID)
	}
	if _, err := svc.Update(ctx, domain.Profile{PreferredUnit: "stone"}); err == nil {
		t.Error("expected validation error")
	}

	calls := q.calls()
	if calls[0].op != domain.OpInsert || calls[1].op != domain.OpUpdate {
		t.Errorf("expected insert then update, got %s, %s", calls[0].op, calls[1].op)
	}
}
