package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWithFileOutput(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "codtool.log")

	cfg := FileConfig{
		Path:       logFile,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	}
	if err := InitWithFileConfig("debug", cfg, false); err != nil {
		t.Fatalf("InitWithFileConfig: %v", err)
	}
	defer Sync()

	Sugar.Infow("decoded texture", "name", "brick_c", "size", "512x512")
	Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "brick_c") {
		t.Errorf("log file missing entry: %q", string(data))
	}
}

func TestInitWithoutFile(t *testing.T) {
	if err := Init("info", ""); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Log == nil || Sugar == nil {
		t.Error("Init left the global loggers nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"warn", "warn"},
		{"error", "error"},
		{"info", "info"},
		{"bogus", "info"}, // unknown levels fall back to info
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in).String(); got != tt.want {
			t.Errorf("parseLevel(%q): got %s, want %s", tt.in, got, tt.want)
		}
	}
}
