package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Cube.WriteMode != "unacked" {
		t.Errorf("Cube.WriteMode = %q, want %q", cfg.Cube.WriteMode, "unacked")
	}
	if cfg.Cube.RetryBudget != 3 {
		t.Errorf("Cube.RetryBudget = %d, want 3", cfg.Cube.RetryBudget)
	}
	if cfg.Cube.TickInterval != 5*time.Millisecond {
		t.Errorf("Cube.TickInterval = %v, want 5ms", cfg.Cube.TickInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
cube:
  address: CF:AA:79:C9:96:9C
  scan_window: 30s
  write_mode: acked
alarm:
  time: "07:30"
  command: "aplay /usr/share/sounds/alarm.wav"
db_path: /tmp/cubealarm.db
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cube.Address != "CF:AA:79:C9:96:9C" {
		t.Errorf("Cube.Address = %q", cfg.Cube.Address)
	}
	if cfg.Cube.ScanWindow != 30*time.Second {
		t.Errorf("Cube.ScanWindow = %v, want 30s", cfg.Cube.ScanWindow)
	}
	if cfg.Cube.WriteMode != "acked" {
		t.Errorf("Cube.WriteMode = %q, want %q", cfg.Cube.WriteMode, "acked")
	}
	// Unset fields keep their defaults.
	if cfg.Cube.RetryBudget != 3 {
		t.Errorf("Cube.RetryBudget = %d, want 3", cfg.Cube.RetryBudget)
	}
	if cfg.Alarm.Time != "07:30" {
		t.Errorf("Alarm.Time = %q", cfg.Alarm.Time)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() of missing file should fail")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty address", func(c *Config) { c.Cube.Address = "" }, "address"},
		{"malformed address", func(c *Config) { c.Cube.Address = "not-a-mac" }, "address"},
		{"bad write mode", func(c *Config) { c.Cube.WriteMode = "maybe" }, "write_mode"},
		{"zero retries", func(c *Config) { c.Cube.RetryBudget = 0 }, "retry_budget"},
		{"bad alarm time", func(c *Config) { c.Alarm.Time = "7am" }, "alarm.time"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Cube.Address = "CF:AA:79:C9:96:9C"
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestValidateAcceptsPlatformIdentifier(t *testing.T) {
	cfg := Default()
	cfg.Cube.Address = "cfaa79c9969c00000000000000000000"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"
	if got := cfg.SlogLevel(); got != slog.LevelWarn {
		t.Errorf("SlogLevel() = %v, want warn", got)
	}
}
