package app

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"fitsync/internal/domain"
)

// WeightService encapsulates weight-tracking use cases.
type WeightService struct {
	w recordWriter
}

// NewWeightService creates a WeightService writing through cache and sync.
func NewWeightService(cache domain.LocalCache, sync ChangeQueuer) *WeightService {
	return &WeightService{w: newRecordWriter(cache, sync)}
}

// GetTodayWeight returns the latest weight entry for the given local day.
func (s *WeightService) GetTodayWeight(ctx context.Context, today string) (*domain.Record, error) {
	items, err := s.sorted(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range items {
		if r.Payload.(domain.WeightLog).Day == today {
			return &r, nil
		}
	}
	return nil, nil
}

// RecordWeight validates and stores a new weight measurement, returning the
// latest entry for today after the insert.
func (s *WeightService) RecordWeight(ctx context.Context, value float64, unit string) (*domain.Record, string, error) {
	if value <= 0 {
		return nil, "", errors.New("value must be > 0")
	}
	if !domain.ValidWeightUnit(unit) {
		return nil, "", errors.New("unit must be \"kg\" or \"lb\"")
	}
	now := s.w.now()
	today := localDay(now)
	rec := domain.Record{
		ID:      uuid.NewString(),
		Payload: domain.WeightLog{Value: value, Unit: unit, Day: today, LoggedAt: now.UTC()},
	}
	if _, err := s.w.put(ctx, domain.OpInsert, rec); err != nil {
		return nil, today, err
	}
	entry, err := s.GetTodayWeight(ctx, today)
	return entry, today, err
}

// ListRecent returns the most recent weight entries up to limit.
func (s *WeightService) ListRecent(ctx context.Context, limit int) ([]domain.Record, error) {
	items, err := s.sorted(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// UndoLast deletes the most recent weight entry and returns the new latest
// entry for today.
func (s *WeightService) UndoLast(ctx context.Context) (bool, *domain.Record, string, error) {
	today := localDay(s.w.now())
	items, err := s.sorted(ctx)
	if err != nil {
		return false, nil, today, err
	}
	if len(items) == 0 {
		return false, nil, today, nil
	}
	if err := s.w.remove(ctx, items[0]); err != nil {
		return false, nil, today, err
	}
	entry, _ := s.GetTodayWeight(ctx, today)
	return true, entry, today, nil
}

// sorted returns live weight entries, newest first.
func (s *WeightService) sorted(ctx context.Context) ([]domain.Record, error) {
	items, err := s.w.live(ctx, domain.KindWeightLog)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		a := items[i].Payload.(domain.WeightLog)
		b := items[j].Payload.(domain.WeightLog)
		return a.LoggedAt.After(b.LoggedAt)
	})
	return items, nil
}
