// Package app wires the appscout CLI commands.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fernwell-systems/appscout/internal/config"
)

var (
	flagConfig  string
	flagDB      string
	flagDataDir string
	flagLog     string

	// RootCmd is the root command for appscout.
	RootCmd = &cobra.Command{
		Use:   "appscout",
		Short: "Personal package recommendations from your hardware and habits",
		Long: `appscout inventories your installed packages and hardware, records which
applications you launch, and suggests packages you might want next. All
data stays in a local SQLite database; nothing ever leaves the machine.

Quick Start:
  1. appscout run              # scan, ingest usage, score
  2. appscout watch --daemon   # keep data fresh in the background
  3. appscout show             # see ranked suggestions

Examples:
  # One-off full refresh
  appscout run

  # Refresh only the inventory and hardware facts
  appscout run --scan

  # Top 10 suggestions as JSON
  appscout show --limit 10 --json

  # Tracking state and data counts
  appscout status`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("appscout: package recommendations from your hardware and habits")
			fmt.Println()
			fmt.Println("Run 'appscout run' to build your first recommendation set.")
			fmt.Println("Run 'appscout --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: $XDG_CONFIG_HOME/appscout/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: <data-dir>/appscout.db)")
	RootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/appscout)")
	RootCmd.PersistentFlags().StringVar(&flagLog, "log-level", "", "log level: debug, info, warn, error")

	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(showCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(watchCmd)
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig resolves the effective configuration: explicit config file
// (strict), or the default path (tolerant), with flag overrides applied
// on top.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		var path string
		path, err = config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}

	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagLog != "" {
		cfg.LogLevel = flagLog
	}
	return cfg, nil
}

func setupLogging() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	return nil
}

// pidFilePath returns the watcher PID file location inside the data dir.
func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "watch.pid")
}

// logFilePath returns the daemon log location inside the data dir.
func logFilePath(dataDir string) string {
	return filepath.Join(dataDir, "watch.log")
}
