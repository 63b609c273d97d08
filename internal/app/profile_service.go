package app

import (
	"context"
	"errors"

	"fitsync/internal/domain"
)

// ProfileService reads and edits the owner's single profile record.
type ProfileService struct {
	w recordWriter
}

// NewProfileService creates a ProfileService writing through cache and sync.
func NewProfileService(cache domain.LocalCache, sync ChangeQueuer) *ProfileService {
	return &ProfileService{w: newRecordWriter(cache, sync)}
}

// Get returns the cached profile, or nil if none is cached yet.
func (s *ProfileService) Get(ctx context.Context) (*domain.Record, error) {
	owner, err := s.w.owner()
	if err != nil {
		return nil, err
	}
	return s.w.get(ctx, domain.KindProfile, owner)
}

// Update overlays the set fields of patch on the profile.
func (s *ProfileService) Update(ctx context.Context, patch domain.Profile) (*domain.Record, error) {
	if patch.PreferredUnit != "" && !domain.ValidWeightUnit(patch.PreferredUnit) {
		return nil, errors.New("preferredUnit must be \"kg\" or \"lb\"")
	}
	if patch.HeightCm != nil && (*patch.HeightCm < 50 || *patch.HeightCm > 280) {
		return nil, errors.New("height must be within [50, 280] cm")
	}
	if patch.DailyStepGoal != nil && *patch.DailyStepGoal < 0 {
		return nil, errors.New("daily step goal must be >= 0")
	}

	cur, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	p := patch
	if cur != nil {
		p = overlayProfile(cur.Payload.(domain.Profile), patch)
	}
	owner, _ := s.w.owner()
	rec, err := s.w.save(ctx, domain.Record{ID: owner, Payload: p})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func overlayProfile(base, patch domain.Profile) domain.Profile {
	if patch.DisplayName != "" {
		base.DisplayName = patch.DisplayName
	}
	if patch.BirthDate != "" {
		base.BirthDate = patch.BirthDate
	}
	if patch.Sex != "" {
		base.Sex = patch.Sex
	}
	if patch.HeightCm != nil {
		base.HeightCm = patch.HeightCm
	}
	if patch.GoalWeight != nil {
		base.GoalWeight = patch.GoalWeight
	}
	if patch.PreferredUnit != "" {
		base.PreferredUnit = patch.PreferredUnit
	}
	if patch.DailyStepGoal != nil {
		base.DailyStepGoal = patch.DailyStepGoal
	}
	if patch.DailyWaterGoal != nil {
		base.DailyWaterGoal = patch.DailyWaterGoal
	}
	if patch.Timezone != "" {
		base.Timezone = patch.Timezone
	}
	return base
}
