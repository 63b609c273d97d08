package adapthttp

import (
	"net/http"
	"time"
)

func (s *Server) handleWeightToday(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPut) || !s.requireOwner(w) {
		return
	}
	if r.Method == http.MethodPut {
		s.recordWeight(w, r)
		return
	}
	today := localDayString(time.Now())
	entry, err := s.Weight.GetTodayWeight(r.Context(), today)
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeTracked(w, map[string]any{"today": today, "entry": entry})
}

func (s *Server) recordWeight(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value float64 `json:"value"`
		Unit  string  `json:"unit"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, day, err := s.Weight.RecordWeight(r.Context(), body.Value, body.Unit)
	if err != nil {
		writeServiceError(w, http.StatusBadRequest, err)
		return
	}
	s.writeTracked(w, map[string]any{"today": day, "entry": entry})
}

func (s *Server) handleWeightRecent(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) || !s.requireOwner(w) {
		return
	}
	items, err := s.Weight.ListRecent(r.Context(), intQuery(r, "limit", 14))
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeTracked(w, map[string]any{"items": items})
}

// handleWeightUndoLast tombstones the newest entry; the delete syncs like any
// other edit.
func (s *Server) handleWeightUndoLast(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) || !s.requireOwner(w) {
		return
	}
	deleted, entry, today, err := s.Weight.UndoLast(r.Context())
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeTracked(w, map[string]any{"deleted": deleted, "today": today, "entry": entry})
}
