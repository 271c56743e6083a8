// Package cli implements the command-line interface for cubealarm.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pshapiro/cubealarm"
	"github.com/pshapiro/cubealarm/internal/config"
	"github.com/pshapiro/cubealarm/internal/storage"
)

const version = "0.1.0"

var (
	// Global flags
	cfgPath string
	dbPath  string
	address string
	verbose bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "cubealarm",
	Short: "GAN cube alarm clock",
	Long: `cubealarm - a wake-up alarm you can only silence by solving your cube.

Connects to a GAN Gen3 smart cube over Bluetooth, follows its moves and
state in real time, and keeps an alarm sounding until the cube reports a
solved state.`,
	Version: version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.config/cubealarm/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file path (default: ~/.cubealarm/cubealarm.db)")
	rootCmd.PersistentFlags().StringVar(&address, "address", "", "Cube address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// loadConfig reads the config file, falling back to defaults when none
// exists. Flags override file values.
func loadConfig() (*config.Config, error) {
	path := cfgPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		if cfgPath == "" && errors.Is(err, fs.ErrNotExist) {
			cfg = config.Default()
		} else {
			return nil, err
		}
	}

	if address != "" {
		cfg.Cube.Address = address
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// openDB opens the configured event database.
func openDB(cfg *config.Config) (*storage.DB, error) {
	if cfg.DBPath != "" {
		return storage.Open(cfg.DBPath)
	}
	return storage.OpenDefault()
}

// newMonitor builds a cube monitor from the loaded config.
func newMonitor(cfg *config.Config, extra ...cubealarm.Option) (*cubealarm.Monitor, error) {
	opts := []cubealarm.Option{
		cubealarm.WithLogger(newLogger(cfg)),
		cubealarm.WithTickInterval(cfg.Cube.TickInterval),
		cubealarm.WithScanWindow(cfg.Cube.ScanWindow),
		cubealarm.WithRetryBudget(cfg.Cube.RetryBudget),
	}
	if cfg.Cube.WriteMode == "acked" {
		opts = append(opts, cubealarm.WithAcknowledgedWrites())
	}
	opts = append(opts, extra...)
	return cubealarm.New(cfg.Cube.Address, opts...)
}
