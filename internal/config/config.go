// Package config loads claimsync configuration from defaults, YAML files and
// the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
)

// Store backends.
const (
	StorePebble   = "pebble"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Search backends.
const (
	SearchBleve     = "bleve"
	SearchTypesense = "typesense"
	SearchMemory    = "memory"
)

// Config is the complete claimsync configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Search  SearchConfig  `yaml:"search"`
	Sync    SyncConfig    `yaml:"sync"`
	Notify  NotifyConfig  `yaml:"notify"`
	Logging LoggingConfig `yaml:"logging"`

	// DataDir holds run locks and, for local backends, default data paths.
	DataDir string `yaml:"data_dir"`
}

// StoreConfig selects and locates the primary claim store.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	// Path is the pebble directory or sqlite file.
	Path string `yaml:"path,omitempty"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn,omitempty"`
}

// SearchConfig selects the search engine and the index to maintain.
type SearchConfig struct {
	Backend string `yaml:"backend"`
	// Path is the bleve root directory.
	Path   string `yaml:"path,omitempty"`
	URL    string `yaml:"url,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	Index  string `yaml:"index"`
	// Version is the expected schema version of the index.
	Version int `yaml:"version"`
	// HealthTimeout bounds a single engine health probe.
	HealthTimeout time.Duration `yaml:"health_timeout"`
}

// SyncConfig tunes the bulk load.
type SyncConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
	BatchSize      int           `yaml:"batch_size"`
	Clients        int           `yaml:"clients"`
	// RateLimit caps documents per second; 0 disables the limit.
	RateLimit     int `yaml:"rate_limit"`
	ProgressEvery int `yaml:"progress_every"`
	// MaxConsecutiveRejections aborts the write after this many batches in
	// a row had every document rejected; 0 disables the check.
	MaxConsecutiveRejections int `yaml:"max_consecutive_rejections"`
	// Blocks caps the snapshot at this block height; 0 syncs everything.
	Blocks int64 `yaml:"blocks"`
}

// NotifyConfig configures the completion event.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Store: StoreConfig{
			Backend: StorePebble,
			Path:    filepath.Join(dataDir, "claims"),
		},
		Search: SearchConfig{
			Backend:       SearchBleve,
			Path:          filepath.Join(dataDir, "search"),
			URL:           "http://localhost:8108",
			Index:         "claims",
			Version:       1,
			HealthTimeout: 5 * time.Second,
		},
		Sync: SyncConfig{
			RequestTimeout:           120 * time.Second,
			BatchSize:                500,
			Clients:                  16,
			ProgressEvery:            10000,
			MaxConsecutiveRejections: 5,
		},
		Notify: NotifyConfig{
			Subject: "claimsync.completed",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		DataDir: dataDir,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".claimsync")
	}
	return filepath.Join(home, ".claimsync")
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/claimsync/config.yaml, or ~/.config/claimsync/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "claimsync", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "claimsync", "config.yaml")
	}
	return filepath.Join(home, ".config", "claimsync", "config.yaml")
}

// Load builds the configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (see GetUserConfigPath), if present
//  3. The explicit file at path, if path is non-empty; it must exist
//  4. Environment variables (CLAIMSYNC_*)
//
// CLI flags are applied by the caller on top of the result.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if !fileExists(path) {
			return nil, cserrors.New(cserrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", path), nil)
		}
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML decodes path over the current values. Keys absent from the file
// keep their current value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cserrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return cserrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

// applyEnvOverrides applies CLAIMSYNC_* environment variables.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"CLAIMSYNC_STORE_BACKEND":  &c.Store.Backend,
		"CLAIMSYNC_STORE_PATH":     &c.Store.Path,
		"CLAIMSYNC_STORE_DSN":      &c.Store.DSN,
		"CLAIMSYNC_SEARCH_BACKEND": &c.Search.Backend,
		"CLAIMSYNC_SEARCH_PATH":    &c.Search.Path,
		"CLAIMSYNC_SEARCH_URL":     &c.Search.URL,
		"CLAIMSYNC_SEARCH_API_KEY": &c.Search.APIKey,
		"CLAIMSYNC_INDEX":          &c.Search.Index,
		"CLAIMSYNC_NATS_URL":       &c.Notify.NATSURL,
		"CLAIMSYNC_LOG_LEVEL":      &c.Logging.Level,
		"CLAIMSYNC_DATA_DIR":       &c.DataDir,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CLAIMSYNC_INDEX_VERSION": &c.Search.Version,
		"CLAIMSYNC_CLIENTS":       &c.Sync.Clients,
		"CLAIMSYNC_BATCH_SIZE":    &c.Sync.BatchSize,
		"CLAIMSYNC_RATE_LIMIT":    &c.Sync.RateLimit,
	}
	for name, dst := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cserrors.ConfigError(fmt.Sprintf("%s must be an integer, got %q", name, v), err)
		}
		*dst = n
	}

	if v := os.Getenv("CLAIMSYNC_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cserrors.ConfigError(fmt.Sprintf("CLAIMSYNC_REQUEST_TIMEOUT must be a duration, got %q", v), err)
		}
		c.Sync.RequestTimeout = d
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case StorePebble, StoreSQLite:
		if c.Store.Path == "" {
			return invalid("store.path is required for the %s backend", c.Store.Backend)
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return invalid("store.dsn is required for the postgres backend")
		}
	default:
		return invalid("store.backend must be 'pebble', 'sqlite' or 'postgres', got %s", c.Store.Backend)
	}

	switch strings.ToLower(c.Search.Backend) {
	case SearchBleve:
		if c.Search.Path == "" {
			return invalid("search.path is required for the bleve backend")
		}
	case SearchTypesense:
		if c.Search.URL == "" {
			return invalid("search.url is required for the typesense backend")
		}
	case SearchMemory:
	default:
		return invalid("search.backend must be 'bleve', 'typesense' or 'memory', got %s", c.Search.Backend)
	}

	if c.Search.Index == "" {
		return invalid("search.index must not be empty")
	}
	if c.Search.Version < 1 {
		return invalid("search.version must be at least 1, got %d", c.Search.Version)
	}
	if c.Search.HealthTimeout <= 0 {
		return invalid("search.health_timeout must be positive, got %s", c.Search.HealthTimeout)
	}
	if c.Sync.Clients < 1 {
		return invalid("sync.clients must be at least 1, got %d", c.Sync.Clients)
	}
	if c.Sync.BatchSize < 1 {
		return invalid("sync.batch_size must be at least 1, got %d", c.Sync.BatchSize)
	}
	if c.Sync.RequestTimeout <= 0 {
		return invalid("sync.request_timeout must be positive, got %s", c.Sync.RequestTimeout)
	}
	if c.Sync.RateLimit < 0 {
		return invalid("sync.rate_limit must be non-negative, got %d", c.Sync.RateLimit)
	}
	if c.Sync.ProgressEvery < 0 {
		return invalid("sync.progress_every must be non-negative, got %d", c.Sync.ProgressEvery)
	}
	if c.Sync.MaxConsecutiveRejections < 0 {
		return invalid("sync.max_consecutive_rejections must be non-negative, got %d", c.Sync.MaxConsecutiveRejections)
	}
	if c.Sync.Blocks < 0 {
		return invalid("sync.blocks must be non-negative, got %d", c.Sync.Blocks)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return cserrors.ConfigError(fmt.Sprintf(format, args...), nil)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LockPath returns the run lock file for an index.
func (c *Config) LockPath(index string) string {
	return filepath.Join(c.DataDir, index+".lock")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
