// Package config loads and validates codepack configuration.
//
// Configuration is merged from three layers, lowest precedence first:
// built-in defaults, the project's .codepack/config.yaml, and CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCacheDir is the cache directory name, relative to the project root.
const DefaultCacheDir = ".codepack-cache"

// DefaultMaxFileSize is the per-file size cutoff (1 MiB). Larger files are
// skipped during discovery.
const DefaultMaxFileSize int64 = 1 << 20

// Config represents codepack configuration options.
type Config struct {
	// Extensions is the file extension allow-list (e.g. ".go", ".ts").
	// Empty means all non-binary files.
	Extensions []string `yaml:"extensions"`

	// IgnorePatterns are glob patterns excluded from discovery and watching,
	// merged with the built-in deny-list
	IgnorePatterns []string `yaml:"ignore_patterns"`

	// MaxFileSize is the per-file size limit in bytes (0 = default 1 MiB)
	MaxFileSize int64 `yaml:"max_file_size"`

	// Format selects the output document format: "markdown" or "text"
	Format string `yaml:"format"`

	// Output is the output file path; empty writes to stdout
	Output string `yaml:"output"`

	// Incremental enables the fingerprint cache so unchanged files are not
	// re-analyzed across runs
	Incremental bool `yaml:"incremental"`

	// CacheDir overrides the cache directory location
	CacheDir string `yaml:"cache_dir"`

	// Debounce is the quiet period before a watch-triggered regeneration
	Debounce time.Duration `yaml:"-"`

	// SmartDiff logs structural add/remove detail on watch cycles.
	// Regeneration always covers the full changed set either way.
	SmartDiff bool `yaml:"smart_diff"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Extensions:     nil, // all text files
		IgnorePatterns: nil,
		MaxFileSize:    DefaultMaxFileSize,
		Format:         "markdown",
		Output:         "",
		Incremental:    false,
		CacheDir:       DefaultCacheDir,
		Debounce:       DefaultDebounce,
		SmartDiff:      false,
		LogLevel:       "info",
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Debounce is a string in YAML ("500ms", "2s", bare millisecond count)
	type yamlConfig struct {
		Extensions     []string `yaml:"extensions"`
		IgnorePatterns []string `yaml:"ignore_patterns"`
		MaxFileSize    int64    `yaml:"max_file_size"`
		Format         string   `yaml:"format"`
		Output         string   `yaml:"output"`
		Incremental    bool     `yaml:"incremental"`
		CacheDir       string   `yaml:"cache_dir"`
		Debounce       string   `yaml:"debounce"`
		SmartDiff      bool     `yaml:"smart_diff"`
		LogLevel       string   `yaml:"log_level"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if len(yamlCfg.Extensions) > 0 {
		cfg.Extensions = yamlCfg.Extensions
	}
	if len(yamlCfg.IgnorePatterns) > 0 {
		cfg.IgnorePatterns = yamlCfg.IgnorePatterns
	}
	if yamlCfg.MaxFileSize != 0 {
		cfg.MaxFileSize = yamlCfg.MaxFileSize
	}
	if yamlCfg.Format != "" {
		cfg.Format = yamlCfg.Format
	}
	if yamlCfg.Output != "" {
		cfg.Output = yamlCfg.Output
	}
	if yamlCfg.Incremental {
		cfg.Incremental = yamlCfg.Incremental
	}
	if yamlCfg.CacheDir != "" {
		cfg.CacheDir = yamlCfg.CacheDir
	}
	if yamlCfg.Debounce != "" {
		debounce, err := ParseDebounce(yamlCfg.Debounce)
		if err != nil {
			return nil, fmt.Errorf("invalid debounce in config: %w", err)
		}
		cfg.Debounce = debounce
	}
	if yamlCfg.SmartDiff {
		cfg.SmartDiff = yamlCfg.SmartDiff
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .codepack/config.yaml in the
// specified directory. A missing directory or file yields defaults.
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".codepack", "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration.
// Non-nil flag values override configuration values, so flags take
// precedence over the config file.
func (c *Config) MergeWithFlags(incremental *bool, cacheDir *string, output *string, format *string, debounce *time.Duration) {
	if incremental != nil {
		c.Incremental = *incremental
	}
	if cacheDir != nil {
		c.CacheDir = *cacheDir
	}
	if output != nil {
		c.Output = *output
	}
	if format != nil {
		c.Format = *format
	}
	if debounce != nil {
		c.Debounce = *debounce
	}
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Format != "markdown" && c.Format != "text" {
		return fmt.Errorf("invalid format %q, must be one of: markdown, text", c.Format)
	}

	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be >= 0, got %d", c.MaxFileSize)
	}

	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be > 0, got %v", c.Debounce)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	return nil
}
