package adapthttp

import (
	"errors"
	"net/http"
	"strings"

	"fitsync/internal/domain"
)

func (s *Server) handleBodyMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		items, err := s.Body.List(ctx)
		if err != nil {
			writeServiceError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case http.MethodPut:
		var body domain.BodyMetric
		if err := parseJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rec, err := s.Body.Record(ctx, body)
		if err != nil {
			writeServiceError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entry": rec})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleBodyMetric(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/body-metrics/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, errors.New("invalid id"))
		return
	}
	deleted, err := s.Body.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, errors.New("body metric not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		rec, err := s.Profile.Get(ctx)
		if err != nil {
			writeServiceError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": rec})

	case http.MethodPut:
		var patch domain.Profile
		if err := parseJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rec, err := s.Profile.Update(ctx, patch)
		if err != nil {
			writeServiceError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": rec})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
