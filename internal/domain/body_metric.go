package domain

// BodyMetric is a dated set of body measurements. Unset measurements are nil.
type BodyMetric struct {
	Date           string   `json:"date"`
	BodyFatPercent *float64 `json:"body_fat_percent"`
	MuscleMassKg   *float64 `json:"muscle_mass_kg"`
	WaistCm        *float64 `json:"waist_cm"`
	HipCm          *float64 `json:"hip_cm"`
	ChestCm        *float64 `json:"chest_cm"`
	Notes          string   `json:"notes"`
}

func (BodyMetric) Kind() Kind { return KindBodyMetric }
func (BodyMetric) isPayload() {}
