// Package config loads the alarm's YAML configuration.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Cube     CubeConfig  `yaml:"cube"`
	Alarm    AlarmConfig `yaml:"alarm"`
	DBPath   string      `yaml:"db_path"`
	LogLevel string      `yaml:"log_level"`
}

// CubeConfig holds connection settings for the cube.
type CubeConfig struct {
	Address      string        `yaml:"address"`
	ScanWindow   time.Duration `yaml:"scan_window"` // 0 scans until found
	WriteMode    string        `yaml:"write_mode"`  // "unacked" or "acked"
	RetryBudget  int           `yaml:"retry_budget"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

// AlarmConfig holds wake-up alarm settings.
type AlarmConfig struct {
	Time    string `yaml:"time"`    // "HH:MM", empty disables the alarm
	Command string `yaml:"command"` // shell command that makes noise
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cubealarm")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Cube: CubeConfig{
			WriteMode:    "unacked",
			RetryBudget:  3,
			TickInterval: 5 * time.Millisecond,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.DBPath = expandTilde(cfg.DBPath)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Cube.Address == "" {
		return fmt.Errorf("cube.address must not be empty")
	}
	if !validAddress(c.Cube.Address) {
		return fmt.Errorf("cube.address must be a hardware address or 32-hex identifier, got %q", c.Cube.Address)
	}

	switch c.Cube.WriteMode {
	case "unacked", "acked":
	default:
		return fmt.Errorf("cube.write_mode must be \"unacked\" or \"acked\", got %q", c.Cube.WriteMode)
	}

	if c.Cube.RetryBudget <= 0 {
		return fmt.Errorf("cube.retry_budget must be > 0")
	}

	if c.Cube.TickInterval <= 0 {
		return fmt.Errorf("cube.tick_interval must be > 0")
	}

	if c.Alarm.Time != "" {
		if _, err := time.Parse("15:04", c.Alarm.Time); err != nil {
			return fmt.Errorf("alarm.time must be HH:MM, got %q", c.Alarm.Time)
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// validAddress accepts a 6-byte hardware address (separators optional) or a
// 32-hex-char platform identifier, the same forms key derivation accepts.
func validAddress(addr string) bool {
	clean := strings.NewReplacer(":", "", "-", "").Replace(addr)
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return false
	}
	return len(raw) == 6 || len(raw) == 16
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
