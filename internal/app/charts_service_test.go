package app_test

import (
	"context"
	"math"
	"testing"

	"fitsync/internal/app"
)

func newChartsFixture() (*app.ChartsService, *app.WeightService, *app.DailyMetricService) {
	cache := newMockCache()
	q := &mockQueuer{owner: "u"}
	ws := app.NewWeightService(cache, q)
	ds := app.NewDailyMetricService(cache, q)
	return app.NewChartsService(ws, ds), ws, ds
}

func TestGetDaily_BadUnit(t *testing.T) {
	svc, _, _ := newChartsFixture()
	_, err := svc.GetDaily(context.Background(), 7, "stones")
	if err == nil {
		t.Fatal("expected error for bad unit")
	}
}

func TestGetDaily_Success(t *testing.T) {
	svc, ws, ds := newChartsFixture()
	ctx := context.Background()
	if _, _, err := ws.RecordWeight(ctx, 80, "kg"); err != nil {
		t.Fatal(err)
	}
	if _, err := ds.AddWater(ctx, 2.5); err != nil {
		t.Fatal(err)
	}

	points, err := svc.GetDaily(ctx, 3, "kg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	last := points[2]
	if last.WaterLiters != 2.5 {
		t.Errorf("expected waterLiters=2.5, got %v", last.WaterLiters)
	}
	if last.Weight == nil || last.Weight.Value != 80 {
		t.Errorf("expected weight 80, got %v", last.Weight)
	}
	if points[0].Weight != nil {
		t.Errorf("expected no weight two days ago, got %v", points[0].Weight)
	}
}

func TestGetDaily_ConvertUnit(t *testing.T) {
	svc, ws, _ := newChartsFixture()
	ctx := context.Background()
	if _, _, err := ws.RecordWeight(ctx, 100, "kg"); err != nil {
		t.Fatal(err)
	}

	points, err := svc.GetDaily(ctx, 1, "lb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w := points[0].Weight
	if w == nil || w.Unit != "lb" || math.Abs(w.Value-220.462) > 0.01 {
		t.Errorf("expected ~220.46 lb, got %+v", w)
	}
}
