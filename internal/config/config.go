// internal/config/config.go
//
// This package handles configuration and the .quadmart directory
// structure. Every install gets a .quadmart/ folder holding the persisted
// collections, logs, and a yaml settings file.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// QuadmartDir is the name of the directory created in the home dir.
	QuadmartDir = ".quadmart"

	defaultReturnWindowDays   = 30
	defaultReviewRewardPoints = 5
)

const defaultSettingsYAML = `# quadmart settings
version: 1

market:
  # Days a buyer has to hand a return parcel to a carrier before the
  # ticket auto-cancels.
  return_window_days: 30
  # Fidelity points granted for a first review of a product.
  review_reward_points: 5
`

// MarketSettings are the tunables the engines consume.
type MarketSettings struct {
	ReturnWindowDays   int `yaml:"return_window_days"`
	ReviewRewardPoints int `yaml:"review_reward_points"`
}

// Settings models .quadmart/config.yaml.
type Settings struct {
	Version int            `yaml:"version"`
	Market  MarketSettings `yaml:"market"`
}

// Config holds the runtime configuration for quadmart.
type Config struct {
	// HomeDir is where .quadmart lives; defaults to the user's home
	// directory, overridable via QUADMART_HOME.
	HomeDir string

	// QuadmartDir is HomeDir/.quadmart.
	QuadmartDir string

	Settings Settings
}

func defaultSettings() Settings {
	return Settings{
		Version: 1,
		Market: MarketSettings{
			ReturnWindowDays:   defaultReturnWindowDays,
			ReviewRewardPoints: defaultReviewRewardPoints,
		},
	}
}

// InitQuadmartDir creates the .quadmart directory structure in the given
// home directory and writes the default settings file if none exists.
//
// Structure created:
// .quadmart/
// ├── data/    <- One JSON file per entity kind
// ├── logs/    <- Activity log
// └── config.yaml
func InitQuadmartDir(homeDir string) error {
	quadmartDir := filepath.Join(homeDir, QuadmartDir)
	dirs := []string{
		filepath.Join(quadmartDir, "data"),
		filepath.Join(quadmartDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	return ensureSettingsFile(filepath.Join(quadmartDir, "config.yaml"))
}

func ensureSettingsFile(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(defaultSettingsYAML), 0o644)
}

// New builds a Config rooted at the given home directory and loads the
// settings file, falling back to defaults for anything missing.
func New(homeDir string) (*Config, error) {
	if homeDir == "" {
		return nil, fmt.Errorf("config: home directory is required")
	}
	cfg := &Config{
		HomeDir:     homeDir,
		QuadmartDir: filepath.Join(homeDir, QuadmartDir),
		Settings:    defaultSettings(),
	}
	if err := cfg.loadSettings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadSettings() error {
	data, err := os.ReadFile(c.SettingsPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read settings: %w", err)
	}
	loaded := defaultSettings()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("config: parse settings: %w", err)
	}
	if loaded.Market.ReturnWindowDays <= 0 {
		loaded.Market.ReturnWindowDays = defaultReturnWindowDays
	}
	if loaded.Market.ReviewRewardPoints < 0 {
		loaded.Market.ReviewRewardPoints = defaultReviewRewardPoints
	}
	c.Settings = loaded
	return nil
}

// DataDir returns the directory holding the persisted collections.
func (c *Config) DataDir() string {
	return filepath.Join(c.QuadmartDir, "data")
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.QuadmartDir, "logs")
}

// SettingsPath returns the on-disk location of the settings file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.QuadmartDir, "config.yaml")
}
