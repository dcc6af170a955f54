package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"none", LevelNone},
		{"invalid", LevelInfo}, // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestNewLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "relay.log")

	logger, err := New(Options{Level: LevelInfo, Path: logPath, Prefix: "SRVR"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("listening on %s", ":10025")
	logger.Debug("should not appear")
	logger.Close()

	content := readLog(t, logPath)
	if !strings.Contains(content, "listening on :10025") {
		t.Errorf("Log file missing info message")
	}
	if strings.Contains(content, "should not appear") {
		t.Errorf("Log file contains debug message when level is INFO")
	}
	if !strings.Contains(content, "[SRVR]") {
		t.Errorf("Log file missing prefix")
	}
}

func TestLoggerWithPrefixSharesLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "relay.log")

	logger, err := New(Options{Level: LevelInfo, Path: logPath, Prefix: "relay"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	child := logger.WithPrefix("hub")
	child.Debug("debug1")

	// level changes on the parent reach derived loggers
	logger.SetLevel(LevelDebug)
	child.Debug("debug2")
	logger.Close()

	content := readLog(t, logPath)
	if strings.Contains(content, "debug1") {
		t.Errorf("debug1 should not appear (level was INFO)")
	}
	if !strings.Contains(content, "[relay:hub] debug2") {
		t.Errorf("Log file missing combined prefix, got: %s", content)
	}
}

func TestLoggerClosedDropsMessages(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "relay.log")

	logger, err := New(Options{Level: LevelDebug, Path: logPath})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.Info("before")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	logger.Info("after")
	if err := logger.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	content := readLog(t, logPath)
	if strings.Contains(content, "after") {
		t.Errorf("message logged after Close")
	}
}

func TestLoggerDisabled(t *testing.T) {
	logger, err := New(Options{Level: LevelNone, Path: filepath.Join(t.TempDir(), "never.log")})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Debug("debug")
	logger.Error("error")
}

func TestSlogAdapter(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "relay.log")

	logger, err := New(Options{Level: LevelInfo, Path: logPath})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	sl := slog.New(NewSlogHandler(logger)).WithGroup("http")
	sl.Info("request", "path", "/ws")
	sl.Debug("hidden")

	std := NewStdLogger(logger, slog.LevelWarn)
	std.Print("tls handshake error")
	logger.Close()

	content := readLog(t, logPath)
	if !strings.Contains(content, "request http.path=/ws") {
		t.Errorf("slog attributes not rendered, got: %s", content)
	}
	if strings.Contains(content, "hidden") {
		t.Errorf("debug record should be filtered")
	}
	if !strings.Contains(content, "[WARN] tls handshake error") {
		t.Errorf("std logger output missing, got: %s", content)
	}
}

func TestGlobalLogger(t *testing.T) {
	if Global() == nil {
		t.Errorf("Global() returned nil")
	}

	// Should not panic
	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error")
}
