package adapthttp

import (
	"context"
	"errors"
	"net/http"
)

func (s *Server) handleSyncState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": s.Sync.Owner(), "state": s.Sync.State()})
}

func (s *Server) handleSyncRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	// A client hanging up must not abort a pass halfway through the queue.
	err := s.Sync.SyncAll(context.WithoutCancel(r.Context()))
	if err != nil {
		writeServiceError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.Sync.State()})
}

func (s *Server) handleSyncNetwork(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Online *bool `json:"online"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Online == nil {
		writeError(w, http.StatusBadRequest, errors.New("online is required"))
		return
	}
	s.Sync.SetOnline(context.WithoutCancel(r.Context()), *body.Online)
	writeJSON(w, http.StatusOK, map[string]any{"state": s.Sync.State()})
}

func (s *Server) handleSyncQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Sync.Queued()})
}
