package app

import (
	"context"
	"errors"
	"time"

	"fitsync/internal/domain"
)

// ChartsService encapsulates chart data retrieval use cases. It reads the
// local cache only, so charts work offline.
type ChartsService struct {
	weights *WeightService
	daily   *DailyMetricService
}

// NewChartsService creates a ChartsService over the tracking services.
func NewChartsService(ws *WeightService, ds *DailyMetricService) *ChartsService {
	return &ChartsService{weights: ws, daily: ds}
}

// DayPoint is a single data point returned by GetDaily.
type DayPoint struct {
	Day         string       `json:"day"`
	WaterLiters float64      `json:"waterLiters"`
	Steps       int          `json:"steps"`
	Weight      *WeightPoint `json:"weight"`
}

// WeightPoint is the optional weight value within a DayPoint.
type WeightPoint struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// GetDaily returns per-day chart data for the last days days, with weights
// converted to the requested unit.
func (s *ChartsService) GetDaily(ctx context.Context, days int, unit string) ([]DayPoint, error) {
	if !domain.ValidWeightUnit(unit) {
		return nil, errors.New("unit must be \"kg\" or \"lb\"")
	}
	if days > 366 {
		days = 366
	}

	weights, err := s.weights.sorted(ctx)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]domain.WeightLog, len(weights))
	for _, r := range weights {
		wl := r.Payload.(domain.WeightLog)
		if _, ok := latest[wl.Day]; !ok {
			latest[wl.Day] = wl
		}
	}

	today := s.weights.w.now().In(time.Local)
	points := make([]DayPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		dayStr := today.AddDate(0, 0, -i).Format("2006-01-02")

		m, err := s.daily.ForDay(ctx, dayStr)
		if err != nil {
			return nil, err
		}

		var wp *WeightPoint
		if entry, ok := latest[dayStr]; ok {
			entry = entry.In(unit)
			wp = &WeightPoint{Value: entry.Value, Unit: entry.Unit}
		}

		points = append(points, DayPoint{Day: dayStr, WaterLiters: m.WaterLiters, Steps: m.Steps, Weight: wp})
	}
	return points, nil
}
