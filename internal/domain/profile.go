package domain

// Profile holds the user's profile settings. Empty strings and nil pointers
// mean the field is unset.
type Profile struct {
	DisplayName    string   `json:"display_name"`
	BirthDate      string   `json:"birth_date"`
	Sex            string   `json:"sex"`
	HeightCm       *float64 `json:"height_cm"`
	GoalWeight     *float64 `json:"goal_weight"`
	PreferredUnit  string   `json:"preferred_unit"`
	DailyStepGoal  *int     `json:"daily_step_goal"`
	DailyWaterGoal *float64 `json:"daily_water_goal"`
	Timezone       string   `json:"timezone"`
}

func (Profile) Kind() Kind { return KindProfile }
func (Profile) isPayload() {}
