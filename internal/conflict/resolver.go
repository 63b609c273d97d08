// Package conflict merges a locally pending record with the remote version of
// the same record.
//
// Every merge is pure and total. Recency decides only when both sides carry an
// UpdatedAt and the local one is strictly newer; in every other case the
// remote side wins, since the remote store is the durability authority.
package conflict

import (
	"time"

	"fitsync/internal/domain"
)

// Resolver resolves conflicts with the per-kind policies of this package.
type Resolver struct{}

// Resolve implements the manager's resolver contract.
func (Resolver) Resolve(local, remote domain.Record) domain.Record {
	return Resolve(local, remote)
}

// Resolve returns the record to keep. The result is always marked synced.
//
//	body_metric:  per measurement, the newer side's value when set, else the other side's
//	profile:      per field, the newer side's value when set, else the other side's
//	daily_metric: counters from the newer side; the larger value when both
//	              sides carry the same timestamp
//	weight_log:   whole record from the newer side
func Resolve(local, remote domain.Record) domain.Record {
	if local.ID != remote.ID || local.Kind() != remote.Kind() {
		return keep(remote, remote, local)
	}
	localNewer := newer(local.UpdatedAt, remote.UpdatedAt)
	winner, loser := remote, local
	if localNewer {
		winner, loser = local, remote
	}

	switch w := winner.Payload.(type) {
	case domain.BodyMetric:
		l, _ := loser.Payload.(domain.BodyMetric)
		return keepPayload(winner, loser, mergeBodyMetric(w, l))
	case domain.Profile:
		l, _ := loser.Payload.(domain.Profile)
		return keepPayload(winner, loser, mergeProfile(w, l))
	case domain.DailyMetric:
		l, _ := loser.Payload.(domain.DailyMetric)
		tied := !local.UpdatedAt.IsZero() && local.UpdatedAt.Equal(remote.UpdatedAt)
		return keepPayload(winner, loser, mergeDailyMetric(w, l, tied))
	case domain.WeightLog:
		return keep(winner, winner, loser)
	}
	return keep(remote, remote, local)
}

// newer reports whether a is a reliable timestamp strictly after b.
func newer(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return a.After(b)
}

func keepPayload(winner, loser domain.Record, p domain.Payload) domain.Record {
	out := keep(winner, winner, loser)
	out.Payload = p
	return out
}

// keep builds the merged envelope: identity and tombstone from the winner,
// the latest reliable timestamp of either side.
func keep(base, winner, loser domain.Record) domain.Record {
	out := base
	out.IsDeleted = winner.IsDeleted
	out.Origin = winner.Origin
	if out.Owner == "" {
		out.Owner = loser.Owner
	}
	if newer(loser.UpdatedAt, out.UpdatedAt) {
		out.UpdatedAt = loser.UpdatedAt
	}
	out.SyncStatus = domain.StatusSynced
	return out
}

func mergeBodyMetric(w, l domain.BodyMetric) domain.BodyMetric {
	return domain.BodyMetric{
		Date:           firstString(w.Date, l.Date),
		BodyFatPercent: firstFloat(w.BodyFatPercent, l.BodyFatPercent),
		MuscleMassKg:   firstFloat(w.MuscleMassKg, l.MuscleMassKg),
		WaistCm:        firstFloat(w.WaistCm, l.WaistCm),
		HipCm:          firstFloat(w.HipCm, l.HipCm),
		ChestCm:        firstFloat(w.ChestCm, l.ChestCm),
		Notes:          firstString(w.Notes, l.Notes),
	}
}

func mergeProfile(w, l domain.Profile) domain.Profile {
	return domain.Profile{
		DisplayName:    firstString(w.DisplayName, l.DisplayName),
		BirthDate:      firstString(w.BirthDate, l.BirthDate),
		Sex:            firstString(w.Sex, l.Sex),
		HeightCm:       firstFloat(w.HeightCm, l.HeightCm),
		GoalWeight:     firstFloat(w.GoalWeight, l.GoalWeight),
		PreferredUnit:  firstString(w.PreferredUnit, l.PreferredUnit),
		DailyStepGoal:  firstInt(w.DailyStepGoal, l.DailyStepGoal),
		DailyWaterGoal: firstFloat(w.DailyWaterGoal, l.DailyWaterGoal),
		Timezone:       firstString(w.Timezone, l.Timezone),
	}
}

// mergeDailyMetric keeps the winner's counters, so a later correction downward
// survives. Only same-instant edits fall back to the larger counter.
func mergeDailyMetric(w, l domain.DailyMetric, tied bool) domain.DailyMetric {
	out := w
	out.Date = firstString(w.Date, l.Date)
	if tied {
		out.Steps = max(w.Steps, l.Steps)
		out.WaterLiters = max(w.WaterLiters, l.WaterLiters)
		out.ActiveMinutes = max(w.ActiveMinutes, l.ActiveMinutes)
		out.CaloriesBurned = max(w.CaloriesBurned, l.CaloriesBurned)
	}
	return out
}

func firstString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstFloat(a, b *float64) *float64 {
	if a != nil {
		v := *a
		return &v
	}
	if b != nil {
		v := *b
		return &v
	}
	return nil
}

func firstInt(a, b *int) *int {
	if a != nil {
		v := *a
		return &v
	}
	if b != nil {
		v := *b
		return &v
	}
	return nil
}
