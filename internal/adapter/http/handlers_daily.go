package adapthttp

import (
	"fmt"
	"net/http"
	"time"

	"fitsync/internal/domain"
)

func (s *Server) handleDailyToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	today := localDayString(time.Now())
	m, err := s.Daily.ForDay(r.Context(), today)
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"today": today, "metrics": m})
}

func (s *Server) handleDailyHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	days := intQuery(r, "days", 7)
	items, err := s.Daily.History(r.Context(), days)
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "items": items})
}

func (s *Server) handleWaterEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		DeltaLiters float64 `json:"deltaLiters"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, err := s.Daily.AddWater(r.Context(), body.DeltaLiters)
	if err != nil {
		writeServiceError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"totalLiters": m.WaterLiters, "metrics": m})
}

func (s *Server) handleStepsToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Steps int `json:"steps"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, err := s.Daily.SetSteps(r.Context(), body.Steps)
	if err != nil {
		writeServiceError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": m})
}

func (s *Server) handleActivityToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ActiveMinutes  int     `json:"activeMinutes"`
		CaloriesBurned float64 `json:"caloriesBurned"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, err := s.Daily.SetActivity(r.Context(), body.ActiveMinutes, body.CaloriesBurned)
	if err != nil {
		writeServiceError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": m})
}

// handleChartsDaily serves per-day water, steps and weight from the local
// cache, so charts keep working offline.
func (s *Server) handleChartsDaily(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) || !s.requireOwner(w) {
		return
	}
	unit := r.URL.Query().Get("unit")
	if unit == "" {
		unit = domain.UnitLb
	}
	if !domain.ValidWeightUnit(unit) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown unit %q", unit))
		return
	}
	days := intQuery(r, "days", 90)
	points, err := s.Charts.GetDaily(r.Context(), days, unit)
	if err != nil {
		writeServiceError(w, http.StatusBadRequest, err)
		return
	}
	s.writeTracked(w, map[string]any{
		"days":  days,
		"unit":  unit,
		"today": localDayString(time.Now()),
		"items": points,
	})
}
