package app

import (
	"context"
	"errors"
	"time"

	"fitsync/internal/domain"
)

// DailyMetricService encapsulates water and step tracking. Each owner has one
// daily metric record per local day.
type DailyMetricService struct {
	w recordWriter
}

// NewDailyMetricService creates a DailyMetricService writing through cache and sync.
func NewDailyMetricService(cache domain.LocalCache, sync ChangeQueuer) *DailyMetricService {
	return &DailyMetricService{w: newRecordWriter(cache, sync)}
}

// ForDay returns the metrics recorded for a local day, zero-valued if none.
func (s *DailyMetricService) ForDay(ctx context.Context, day string) (domain.DailyMetric, error) {
	owner, err := s.w.owner()
	if err != nil {
		return domain.DailyMetric{}, err
	}
	rec, err := s.w.get(ctx, domain.KindDailyMetric, stableID(owner, domain.KindDailyMetric, day))
	if err != nil {
		return domain.DailyMetric{}, err
	}
	if rec == nil {
		return domain.DailyMetric{Date: day}, nil
	}
	return rec.Payload.(domain.DailyMetric), nil
}

// AddWater adds deltaLiters to today's water intake. Negative deltas undo
// earlier additions; the total never drops below zero.
func (s *DailyMetricService) AddWater(ctx context.Context, deltaLiters float64) (domain.DailyMetric, error) {
	if deltaLiters == 0 || deltaLiters < -10 || deltaLiters > 10 {
		return domain.DailyMetric{}, errors.New("deltaLiters must be non-zero and within [-10, 10]")
	}
	return s.modifyToday(ctx, func(m *domain.DailyMetric) {
		m.WaterLiters = max(0, m.WaterLiters+deltaLiters)
	})
}

// SetSteps records today's step count.
func (s *DailyMetricService) SetSteps(ctx context.Context, steps int) (domain.DailyMetric, error) {
	if steps < 0 || steps > 200000 {
		return domain.DailyMetric{}, errors.New("steps must be within [0, 200000]")
	}
	return s.modifyToday(ctx, func(m *domain.DailyMetric) {
		m.Steps = steps
	})
}

// SetActivity records today's active minutes and calories burned.
func (s *DailyMetricService) SetActivity(ctx context.Context, minutes int, calories float64) (domain.DailyMetric, error) {
	if minutes < 0 || minutes > 24*60 || calories < 0 {
		return domain.DailyMetric{}, errors.New("activity values out of range")
	}
	return s.modifyToday(ctx, func(m *domain.DailyMetric) {
		m.ActiveMinutes = minutes
		m.CaloriesBurned = calories
	})
}

func (s *DailyMetricService) modifyToday(ctx context.Context, fn func(*domain.DailyMetric)) (domain.DailyMetric, error) {
	today := localDay(s.w.now())
	m, err := s.ForDay(ctx, today)
	if err != nil {
		return domain.DailyMetric{}, err
	}
	fn(&m)
	owner, _ := s.w.owner()
	rec := domain.Record{ID: stableID(owner, domain.KindDailyMetric, today), Payload: m}
	if _, err := s.w.save(ctx, rec); err != nil {
		return domain.DailyMetric{}, err
	}
	return m, nil
}

// History returns the daily metrics of the last days local days, oldest
// first. Days without a record are zero-valued.
func (s *DailyMetricService) History(ctx context.Context, days int) ([]domain.DailyMetric, error) {
	today := s.w.now().In(time.Local)
	out := make([]domain.DailyMetric, 0, days)
	for i := days - 1; i >= 0; i-- {
		m, err := s.ForDay(ctx, today.AddDate(0, 0, -i).Format("2006-01-02"))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
