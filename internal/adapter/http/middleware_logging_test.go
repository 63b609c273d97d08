package adapthttp

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	s := New(Services{}, slog.New(slog.NewTextHandler(&buf, nil)))

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("OK"))
	})
	handler := s.loggingMiddleware(nextHandler)

	req := httptest.NewRequest("GET", "/test-path", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, w.Code)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "method=GET") || !strings.Contains(logOutput, "path=/test-path") || !strings.Contains(logOutput, "status=418") {
		t.Errorf("Log output missing expected fields. Got: %s", logOutput)
	}
}
