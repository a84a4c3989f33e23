package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "debug", want: zapcore.DebugLevel},
		{in: "", want: zapcore.InfoLevel},
		{in: "INFO", want: zapcore.InfoLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "loud", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("ParseLevel(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
			}
		})
	}
}

func TestNew_ConsoleJSON(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Level: "warn", Console: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer closeFn()

	log.Info("dropped")
	log.Named("orchestrator").Warn("kept", zap.String("activity", "running"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above the level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "kept" || entry["logger"] != "orchestrator" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["activity"] != "running" {
		t.Fatalf("missing field: %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatalf("missing timestamp: %v", entry)
	}
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cadence.log")
	log, closeFn, err := New(Options{Level: "info", File: path, Console: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Info("to file")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"to file"`) {
		t.Fatalf("log file missing entry: %s", raw)
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "verbose"}); err == nil {
		t.Fatalf("expected error")
	}
}
