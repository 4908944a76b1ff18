// Package config loads Treedex configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Treedex configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Sync     SyncConfig     `yaml:"sync" json:"sync"`
	Dispatch DispatchConfig `yaml:"dispatch" json:"dispatch"`
	Locator  LocatorConfig  `yaml:"locator" json:"locator"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// PathsConfig configures where Treedex keeps its state.
type PathsConfig struct {
	// DataDir holds the store file, sync lock and logs.
	// Default: ~/.treedex
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// StoreFile is the bolt database holding catalog snapshots,
	// relative to DataDir unless absolute.
	StoreFile string `yaml:"store_file" json:"store_file"`
}

// SyncConfig configures catalog synchronization.
type SyncConfig struct {
	// Prune removes indexes no longer declared by the schema.
	// Default is additive-only.
	Prune bool `yaml:"prune" json:"prune"`

	// MaxConcurrent bounds how many catalog instances a bulk sync
	// reconciles in parallel. Zero means unbounded.
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent"`

	// Background runs startup synchronization in a background
	// goroutine instead of blocking.
	Background bool `yaml:"background" json:"background"`
}

// DispatchConfig configures event dispatching.
type DispatchConfig struct {
	// DebounceWindowMS coalesces bursts of events for the same
	// resource within this many milliseconds before indexing. Zero
	// applies every event immediately.
	DebounceWindowMS int `yaml:"debounce_window_ms" json:"debounce_window_ms"`
}

// LocatorConfig configures catalog resolution.
type LocatorConfig struct {
	// CacheSize is the resolution cache capacity. Zero or negative
	// disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:   defaultDataDir(),
			StoreFile: "treedex.db",
		},
		Sync: SyncConfig{
			Prune:         false,
			MaxConcurrent: 4,
			Background:    false,
		},
		Dispatch: DispatchConfig{
			DebounceWindowMS: 0,
		},
		Locator: LocatorConfig{
			CacheSize: 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".treedex")
	}
	return filepath.Join(home, ".treedex")
}

// GetUserConfigPath returns the path to the user configuration file,
// following the XDG Base Directory layout:
//   - $XDG_CONFIG_HOME/treedex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/treedex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "treedex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "treedex", "config.yaml")
	}
	return filepath.Join(home, ".config", "treedex", "config.yaml")
}

// Load loads configuration for the given project directory, applying
// sources in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/treedex/config.yaml)
//  3. Project config (.treedex.yaml in dir)
//  4. Environment variables (TREEDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config from %s: %w", userPath, err)
		}
	}

	if err := cfg.loadProjectFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadProjectFile loads .treedex.yaml or .treedex.yml from dir.
func (c *Config) loadProjectFile(dir string) error {
	for _, name := range []string{".treedex.yaml", ".treedex.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies TREEDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TREEDEX_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("TREEDEX_STORE_FILE"); v != "" {
		c.Paths.StoreFile = v
	}
	if v := os.Getenv("TREEDEX_SYNC_PRUNE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Sync.Prune = b
		}
	}
	if v := os.Getenv("TREEDEX_SYNC_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.MaxConcurrent = n
		}
	}
	if v := os.Getenv("TREEDEX_DISPATCH_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dispatch.DebounceWindowMS = n
		}
	}
	if v := os.Getenv("TREEDEX_LOCATOR_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Locator.CacheSize = n
		}
	}
	if v := os.Getenv("TREEDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the final configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if c.Paths.StoreFile == "" {
		return fmt.Errorf("paths.store_file must not be empty")
	}
	if c.Sync.MaxConcurrent < 0 {
		return fmt.Errorf("sync.max_concurrent must not be negative, got %d", c.Sync.MaxConcurrent)
	}
	if c.Dispatch.DebounceWindowMS < 0 {
		return fmt.Errorf("dispatch.debounce_window_ms must not be negative, got %d", c.Dispatch.DebounceWindowMS)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}

// StorePath resolves the store file against the data directory.
func (c *Config) StorePath() string {
	if filepath.IsAbs(c.Paths.StoreFile) {
		return c.Paths.StoreFile
	}
	return filepath.Join(c.Paths.DataDir, c.Paths.StoreFile)
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
