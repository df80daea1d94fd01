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

func TestSetupWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "gamewarden.log")

	logger, closer, err := Setup(Options{File: file, Level: "info", MaxSizeMB: 1, Stdout: &console})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	logger.With("server", "alpha").Info("operation finished", "status", "completed")
	logger.Debug("hidden")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !strings.Contains(console.String(), "server=alpha") || strings.Contains(console.String(), "hidden") {
		t.Errorf("console output = %q", console.String())
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log file is not one JSON record: %q", data)
	}
	if rec["msg"] != "operation finished" || rec["server"] != "alpha" || rec["status"] != "completed" {
		t.Errorf("record = %v", rec)
	}
}

func TestSetupDevEnablesDebug(t *testing.T) {
	var console bytes.Buffer
	logger, _, err := Setup(Options{Level: "error", Dev: true, Stdout: &console})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	logger.Debug("visible")
	if !strings.Contains(console.String(), "visible") {
		t.Errorf("debug line missing in dev mode: %q", console.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel accepted an unknown level")
	}
}
