package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_TextFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Config{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	log.Info("hidden")
	log.Warn("shown", "pending", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered:\n%s", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "pending=2") {
		t.Errorf("missing warn line:\n%s", out)
	}
}

func TestNew_JSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitsync.log")
	log, closer, err := New(Config{Format: "json", File: path, MaxSizeMB: 1}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("sync finished", "pending", 0)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", data, err)
	}
	if line["msg"] != "sync finished" {
		t.Errorf("msg = %v", line["msg"])
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, _, err := New(Config{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}
