package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Vodeneev/betrunner/internal/pkg/config"
)

func TestMultiHandler_FansOut(t *testing.T) {
	var info, debug bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h).With("service", "test")

	logger.Debug("only debug")
	logger.Info("both", "race", "Ascot")

	if strings.Contains(info.String(), "only debug") {
		t.Error("info handler received a debug record")
	}
	if !strings.Contains(debug.String(), "only debug") {
		t.Error("debug handler missed the debug record")
	}
	for _, out := range []string{info.String(), debug.String()} {
		if !strings.Contains(out, "race=Ascot") || !strings.Contains(out, "service=test") {
			t.Errorf("missing attrs in %q", out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		err   bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.err {
			t.Errorf("ParseLevel(%q) error = %v, want error %v", tt.input, err, tt.err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSetupLogger_WritesFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "betrunner.log")
	logger, closer, err := SetupLogger(&config.LoggingConfig{Level: "info", File: path}, "betrunner")
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	logger.Info("Bet processed", "horse", "Frankel")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"horse":"Frankel"`) {
		t.Errorf("log file missing record: %s", data)
	}
}
