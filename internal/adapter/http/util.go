package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"fitsync/internal/app"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writeServiceError maps a service error to a status. Validation errors are
// the caller's fault; a missing owner means nobody is signed in.
func writeServiceError(w http.ResponseWriter, fallback int, err error) {
	switch {
	case errors.Is(err, app.ErrNoOwner):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, app.ErrOffline):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, fallback, err)
	}
}

// allow answers 405 with an Allow header unless r uses one of methods.
func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if slices.Contains(methods, r.Method) {
		return true
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

// requireOwner answers 401 when no owner is bound to the sync manager.
func (s *Server) requireOwner(w http.ResponseWriter) bool {
	if s.Sync.Owner() == "" {
		writeServiceError(w, http.StatusUnauthorized, app.ErrNoOwner)
		return false
	}
	return true
}

// writeTracked writes body with the number of local edits still waiting for
// the remote store.
func (s *Server) writeTracked(w http.ResponseWriter, body map[string]any) {
	body["pending"] = s.Sync.State().PendingCount
	writeJSON(w, http.StatusOK, body)
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func localDayString(t time.Time) string {
	return t.In(time.Local).Format("2006-01-02")
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
