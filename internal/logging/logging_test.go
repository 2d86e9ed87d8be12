package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesAtLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(slog.LevelInfo, WithWriter(&buf), WithNoColor())
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("model ready", "arena_used_bytes", 1234)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
	if !strings.Contains(out, "model ready") || !strings.Contains(out, "arena_used_bytes=1234") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("NoColor output contains escape codes: %q", out)
	}
}

func TestNewWithLogFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "edge.log")
	logger, closer := New(slog.LevelDebug, WithWriter(&buf), WithLogFile(path))

	logger.Debug("window decoded", "text", "hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "window decoded") {
		t.Errorf("log file = %q", data)
	}
	if strings.Contains(string(data), "\x1b[") {
		t.Errorf("log file contains escape codes: %q", data)
	}
	if !strings.Contains(buf.String(), "window decoded") {
		t.Errorf("console output = %q", buf.String())
	}
}
