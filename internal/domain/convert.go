package domain

// Weight units accepted by weight logs, the profile and charts.
const (
	UnitKg = "kg"
	UnitLb = "lb"
)

const lbPerKg = 2.2046226218

// ValidWeightUnit reports whether u is UnitKg or UnitLb.
func ValidWeightUnit(u string) bool {
	return u == UnitKg || u == UnitLb
}

// ConvertWeight converts v from one unit to the other. Unknown units leave v
// unchanged.
func ConvertWeight(v float64, from, to string) float64 {
	switch {
	case from == UnitKg && to == UnitLb:
		return v * lbPerKg
	case from == UnitLb && to == UnitKg:
		return v / lbPerKg
	default:
		return v
	}
}

// In returns the measurement expressed in unit.
func (w WeightLog) In(unit string) WeightLog {
	if !ValidWeightUnit(unit) || w.Unit == unit {
		return w
	}
	w.Value = ConvertWeight(w.Value, w.Unit, unit)
	w.Unit = unit
	return w
}
