// Package config provides configuration loading and structs for the ruiji server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Embedding source formats.
const (
	FormatText     = "text"
	FormatSnapshot = "snapshot"
	FormatSQLite   = "sqlite"
)

// Environment variables that override file values.
const (
	EnvEmbeddingPath = "RUIJI_EMBEDDING_PATH"
	EnvServerPort    = "RUIJI_SERVER_PORT"
	EnvDebug         = "RUIJI_DEBUG"
	EnvDatabasePath  = "RUIJI_DATABASE_PATH"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Storage   StorageConfig   `yaml:"storage"`
	Query     QueryConfig     `yaml:"query"`
	Suggest   SuggestConfig   `yaml:"suggest"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EmbeddingConfig says where the word vectors come from.
type EmbeddingConfig struct {
	// Path is the GloVe-style text file. It is also the import source for snapshot and sqlite.
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
	// Dimensions, when set, fixes D instead of inferring it from the first line.
	Dimensions int `yaml:"dimensions"`
	// MaxWords stops loading after this many distinct words (0 = all).
	MaxWords     int    `yaml:"max_words"`
	SnapshotPath string `yaml:"snapshot_path"`
}

// StorageConfig holds the SQLite database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// QueryConfig holds similarity query settings.
type QueryConfig struct {
	DefaultTopN int  `yaml:"default_top_n"`
	MaxTopN     int  `yaml:"max_top_n"`
	CacheSize   int  `yaml:"cache_size"`
	LogQueries  bool `yaml:"log_queries"`
}

// SuggestConfig holds "did you mean" settings for unknown words.
type SuggestConfig struct {
	Enabled        *bool `yaml:"enabled"`
	MaxDistance    int   `yaml:"max_distance"`
	MaxSuggestions int   `yaml:"max_suggestions"`
}

// EnabledOrDefault returns whether suggestions are on; defaults to true when unset.
func (s *SuggestConfig) EnabledOrDefault() bool {
	if s.Enabled != nil {
		return *s.Enabled
	}
	return true
}

// WatchConfig holds embedding file watch settings.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, applies defaults, then environment
// overrides (including a .env file next to the config, if present), and expands paths.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	// Variables already set in the process environment win over the .env file.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Embedding.Path = expandPath(cfg.Embedding.Path, configDir)
	cfg.Embedding.SnapshotPath = expandPath(cfg.Embedding.SnapshotPath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)

	return &cfg, nil
}

// ApplyEnv overrides file values with RUIJI_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvEmbeddingPath); v != "" {
		cfg.Embedding.Path = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvServerPort, v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvDebug, v, err)
		}
		cfg.Debug = debug
	}
	return nil
}

// Validate rejects settings the loader cannot work with.
func (c *Config) Validate() error {
	switch c.Embedding.Format {
	case FormatText, FormatSnapshot, FormatSQLite:
	default:
		return fmt.Errorf("unknown embedding format %q (want %s, %s or %s)",
			c.Embedding.Format, FormatText, FormatSnapshot, FormatSQLite)
	}
	if c.Embedding.Dimensions < 0 || c.Embedding.MaxWords < 0 {
		return fmt.Errorf("embedding dimensions and max_words must not be negative")
	}
	if c.Query.DefaultTopN > c.Query.MaxTopN {
		return fmt.Errorf("query.default_top_n (%d) exceeds query.max_top_n (%d)",
			c.Query.DefaultTopN, c.Query.MaxTopN)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
