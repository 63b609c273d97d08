package domain

import "time"

// WeightLog is a single weight measurement.
type WeightLog struct {
	Value    float64   `json:"value"`
	Unit     string    `json:"unit"`
	Day      string    `json:"day"`
	LoggedAt time.Time `json:"logged_at"`
}

func (WeightLog) Kind() Kind { return KindWeightLog }
func (WeightLog) isPayload() {}
