package domain

// DailyMetric accumulates activity counters for one calendar day.
type DailyMetric struct {
	Date           string  `json:"date"`
	Steps          int     `json:"steps"`
	WaterLiters    float64 `json:"water_liters"`
	ActiveMinutes  int     `json:"active_minutes"`
	CaloriesBurned float64 `json:"calories_burned"`
}

func (DailyMetric) Kind() Kind { return KindDailyMetric }
func (DailyMetric) isPayload() {}
