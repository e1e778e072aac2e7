package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestLoggerJSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf}).WithComponent(ComponentArchive)

	logger.Info("restored", FieldTenantID, "t1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if rec[FieldComponent] != ComponentArchive || rec[FieldTenantID] != "t1" {
		t.Errorf("record = %v", rec)
	}
}

func TestFromContextFallback(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Errorf("FromContext() = %+v", l)
	}

	logger := New(DefaultConfig())
	ctx := NewContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("FromContext() should return the stored logger")
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Output: &buf}))
	r := httptest.NewRequest("GET", "/api/ledger/summary", nil)

	sl.LogHTTPEnd(context.Background(), r, 503, 12, "127.0.0.1")
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("5xx should log at error: %s", buf.String())
	}

	buf.Reset()
	sl.LogError(context.Background(), "restore failed", errors.New("boom"), ComponentArchive, OpRestore, nil)
	out := buf.String()
	if !strings.Contains(out, "error=boom") || !strings.Contains(out, "operation=restore") {
		t.Errorf("LogError output = %s", out)
	}
}
