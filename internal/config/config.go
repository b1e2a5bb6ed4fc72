// Package config provides configuration loading and structs for the bookshelf server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Model     ModelConfig     `yaml:"model"`
	Recommend RecommendConfig `yaml:"recommend"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// CatalogConfig holds catalog import directories watched for new files.
type CatalogConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (c *CatalogConfig) RecursiveOrDefault() bool {
	if c.Recursive != nil {
		return *c.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and search index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// ModelConfig holds scorer settings. Durations are Go duration strings ("2s").
type ModelConfig struct {
	ModelPath        string `yaml:"model_path"`
	LibraryPath      string `yaml:"library_path"`
	InputName        string `yaml:"input_name"`
	OutputName       string `yaml:"output_name"`
	InputWidth       int    `yaml:"input_width"`
	OutputWidth      int    `yaml:"output_width"`
	DirectIndexSlots int    `yaml:"direct_index_slots"`
	TopK             int    `yaml:"top_k"`
	ScorerTimeout    string `yaml:"scorer_timeout"`
	BreakerFailures  uint32 `yaml:"breaker_failures"`
	BreakerCooldown  string `yaml:"breaker_cooldown"`
}

// Timeout returns the parsed scorer timeout.
func (m *ModelConfig) Timeout() (time.Duration, error) {
	return parseDuration("scorer_timeout", m.ScorerTimeout)
}

// Cooldown returns the parsed breaker cooldown.
func (m *ModelConfig) Cooldown() (time.Duration, error) {
	return parseDuration("breaker_cooldown", m.BreakerCooldown)
}

// RecommendConfig holds page size limits for recommendations and catalog search.
type RecommendConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Model.ModelPath = expandPath(cfg.Model.ModelPath, configDir)
	for i := range cfg.Catalog.Directories {
		cfg.Catalog.Directories[i] = expandPath(cfg.Catalog.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate checks values ApplyDefaults cannot repair.
func Validate(cfg *Config) error {
	if _, err := cfg.Model.Timeout(); err != nil {
		return err
	}
	if _, err := cfg.Model.Cooldown(); err != nil {
		return err
	}
	if cfg.Model.DirectIndexSlots >= cfg.Model.InputWidth {
		return fmt.Errorf("invalid config: direct_index_slots (%d) must be smaller than input_width (%d)",
			cfg.Model.DirectIndexSlots, cfg.Model.InputWidth)
	}
	if cfg.Recommend.DefaultLimit > cfg.Recommend.MaxLimit {
		return fmt.Errorf("invalid config: default_limit (%d) exceeds max_limit (%d)",
			cfg.Recommend.DefaultLimit, cfg.Recommend.MaxLimit)
	}
	return nil
}

// Save writes the config to path. Used for persisting catalog directory add/remove.
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

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid config: %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid config: %s must not be negative", name)
	}
	return d, nil
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
