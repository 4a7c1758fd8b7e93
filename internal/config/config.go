// Package config handles loading and validating appscout configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigFileNotFound is returned by LoadFile when the specified config
// file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Duration wraps time.Duration for YAML parsing of values like "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UsageConfig tunes usage-signal aggregation.
type UsageConfig struct {
	// WindowDays bounds the frequency count to a rolling window so very
	// old, very active phases of use cannot dominate forever.
	WindowDays int `yaml:"window_days"`
	// HalfLifeDays controls the exponential recency decay: an event this
	// many days old contributes half as much as one happening now.
	HalfLifeDays float64 `yaml:"half_life_days"`
	// RetentionDays prunes events older than this many days. 0 keeps
	// everything.
	RetentionDays int `yaml:"retention_days"`
	// SpoolBatch caps the number of launch-spool lines ingested per pass.
	SpoolBatch int `yaml:"spool_batch"`
}

// WeightsConfig holds the scoring weights. They are a design choice, not a
// discovered constant, so they live in configuration.
type WeightsConfig struct {
	Hardware   float64 `yaml:"hardware"`
	Similarity float64 `yaml:"similarity"`
	Popularity float64 `yaml:"popularity"`
	MinScore   float64 `yaml:"min_score"`
	MaxResults int     `yaml:"max_results"`
}

// Config is the top-level appscout configuration.
type Config struct {
	DataDir     string        `yaml:"data_dir"`
	DBPath      string        `yaml:"db_path"`
	CatalogPath string        `yaml:"catalog_path"`
	// ScanInterval is informational for the scheduler (systemd timer);
	// the engine itself never enforces it.
	ScanInterval Duration      `yaml:"scan_interval"`
	Usage        UsageConfig   `yaml:"usage"`
	Weights      WeightsConfig `yaml:"weights"`
	LogLevel     string        `yaml:"log_level"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		ScanInterval: Duration(24 * time.Hour),
		Usage: UsageConfig{
			WindowDays:   30,
			HalfLifeDays: 14,
			SpoolBatch:   10_000,
		},
		Weights: WeightsConfig{
			Hardware:   2.0,
			Similarity: 1.5,
			Popularity: 0.5,
			MinScore:   0.1,
			MaxResults: 50,
		},
		LogLevel: "info",
	}
}

// DefaultPath returns the default config file location, respecting
// XDG_CONFIG_HOME. Defaults to ~/.config/appscout/config.yaml.
func DefaultPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "appscout", "config.yaml"), nil
}

// DefaultDataDir returns the default data directory, respecting
// XDG_DATA_HOME. Defaults to ~/.local/share/appscout.
func DefaultDataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "appscout"), nil
}

// Load reads the config at path, falling back to defaults if it does not
// exist. Used for the implicit default path.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if errors.Is(err, ErrConfigFileNotFound) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFile reads the config at path. A missing file is an error; use Load
// for the tolerant variant.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if c.Usage.WindowDays <= 0 {
		return fmt.Errorf("usage.window_days must be positive, got %d", c.Usage.WindowDays)
	}
	if c.Usage.HalfLifeDays <= 0 {
		return fmt.Errorf("usage.half_life_days must be positive, got %v", c.Usage.HalfLifeDays)
	}
	if c.Usage.RetentionDays < 0 {
		return fmt.Errorf("usage.retention_days must not be negative, got %d", c.Usage.RetentionDays)
	}
	if c.Usage.SpoolBatch <= 0 {
		return fmt.Errorf("usage.spool_batch must be positive, got %d", c.Usage.SpoolBatch)
	}
	if c.Weights.MaxResults <= 0 {
		return fmt.Errorf("weights.max_results must be positive, got %d", c.Weights.MaxResults)
	}
	for name, w := range map[string]float64{
		"hardware":   c.Weights.Hardware,
		"similarity": c.Weights.Similarity,
		"popularity": c.Weights.Popularity,
		"min_score":  c.Weights.MinScore,
	} {
		if w < 0 {
			return fmt.Errorf("weights.%s must not be negative, got %v", name, w)
		}
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}

// ResolveDataDir returns the configured data directory, or the XDG default,
// creating it if needed. All persisted state lives under it.
func (c *Config) ResolveDataDir() (string, error) {
	dir := c.DataDir
	if dir == "" {
		var err error
		dir, err = DefaultDataDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine data directory: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// ResolveDBPath returns the configured database file path, defaulting to
// appscout.db inside the data directory.
func (c *Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	dir, err := c.ResolveDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "appscout.db"), nil
}
