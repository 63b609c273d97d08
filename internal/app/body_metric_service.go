package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"fitsync/internal/domain"
)

// BodyMetricService records dated body measurements, one record per day.
type BodyMetricService struct {
	w recordWriter
}

// NewBodyMetricService creates a BodyMetricService writing through cache and sync.
func NewBodyMetricService(cache domain.LocalCache, sync ChangeQueuer) *BodyMetricService {
	return &BodyMetricService{w: newRecordWriter(cache, sync)}
}

// Record stores measurements for their date. Set fields replace the stored
// ones; nil fields keep them.
func (s *BodyMetricService) Record(ctx context.Context, m domain.BodyMetric) (*domain.Record, error) {
	if _, err := time.Parse("2006-01-02", m.Date); err != nil {
		return nil, errors.New("date must be YYYY-MM-DD")
	}
	if m.BodyFatPercent != nil && (*m.BodyFatPercent <= 0 || *m.BodyFatPercent >= 100) {
		return nil, errors.New("body fat percent must be within (0, 100)")
	}
	for _, v := range []*float64{m.MuscleMassKg, m.WaistCm, m.HipCm, m.ChestCm} {
		if v != nil && *v <= 0 {
			return nil, errors.New("measurements must be > 0")
		}
	}

	owner, err := s.w.owner()
	if err != nil {
		return nil, err
	}
	id := stableID(owner, domain.KindBodyMetric, m.Date)
	cur, err := s.w.get(ctx, domain.KindBodyMetric, id)
	if err != nil {
		return nil, err
	}
	if cur != nil {
		m = overlayBodyMetric(cur.Payload.(domain.BodyMetric), m)
	}
	rec, err := s.w.save(ctx, domain.Record{ID: id, Payload: m})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns live body metric records, newest date first.
func (s *BodyMetricService) List(ctx context.Context) ([]domain.Record, error) {
	items, err := s.w.live(ctx, domain.KindBodyMetric)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Payload.(domain.BodyMetric).Date > items[j].Payload.(domain.BodyMetric).Date
	})
	return items, nil
}

// Delete tombstones a body metric record. It reports false if none exists.
func (s *BodyMetricService) Delete(ctx context.Context, id string) (bool, error) {
	cur, err := s.w.get(ctx, domain.KindBodyMetric, id)
	if err != nil || cur == nil {
		return false, err
	}
	if err := s.w.remove(ctx, *cur); err != nil {
		return false, err
	}
	return true, nil
}

func overlayBodyMetric(base, patch domain.BodyMetric) domain.BodyMetric {
	if patch.BodyFatPercent != nil {
		base.BodyFatPercent = patch.BodyFatPercent
	}
	if patch.MuscleMassKg != nil {
		base.MuscleMassKg = patch.MuscleMassKg
	}
	if patch.WaistCm != nil {
		base.WaistCm = patch.WaistCm
	}
	if patch.HipCm != nil {
		base.HipCm = patch.HipCm
	}
	if patch.ChestCm != nil {
		base.ChestCm = patch.ChestCm
	}
	if patch.Notes != "" {
		base.Notes = patch.Notes
	}
	return base
}
