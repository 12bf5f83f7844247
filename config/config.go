// Package config defines the mapping engine configuration, loaded from a
// YAML file with environment variable overrides layered on top.
package config

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/c360/pointmap/errors"
	"github.com/c360/pointmap/quality"
)

// Defaults applied when a field is absent from the file and environment.
const (
	DefaultCacheTTL            = time.Hour
	DefaultMaxOracleRetries    = 2
	DefaultOracleTimeout       = 30 * time.Second
	DefaultMemoryExampleCap    = 5
	DefaultConfidenceThreshold = 0.7
	DefaultMaxConcurrent       = 8
	DefaultOracleSampleLimit   = 100
	DefaultMemoryPath          = "pointmap.db"
)

// Config represents the complete mapping engine configuration.
type Config struct {
	// Grouping cache. A TTL of zero disables caching so every batch
	// recomputes its grouping. An empty path keeps the cache in memory
	// only; otherwise entries are snapshotted there across restarts.
	CacheEnabled bool          `yaml:"cache_enabled" json:"cache_enabled"`
	CacheTTL     time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	CachePath    string        `yaml:"cache_path" json:"cache_path"`

	// Oracle behavior
	MaxOracleRetries  int           `yaml:"max_oracle_retries" json:"max_oracle_retries"`
	OracleTimeout     time.Duration `yaml:"oracle_timeout" json:"oracle_timeout"`
	ReflectionEnabled bool          `yaml:"reflection_enabled" json:"reflection_enabled"`
	OracleSampleLimit int           `yaml:"oracle_sample_limit" json:"oracle_sample_limit"`

	// Memory and learning
	LearningEnabled     bool    `yaml:"learning_enabled" json:"learning_enabled"`
	MemoryExampleCap    int     `yaml:"memory_example_cap" json:"memory_example_cap"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	MemoryPath          string  `yaml:"memory_path" json:"memory_path"`

	// Batch processing
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent"`

	// Quality assessment thresholds and weights
	Quality quality.Config `yaml:"quality" json:"quality"`

	// Logging
	Log LogConfig `yaml:"log" json:"log"`
}

// LogConfig controls structured log output.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text or json
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		CacheEnabled:        true,
		CacheTTL:            DefaultCacheTTL,
		MaxOracleRetries:    DefaultMaxOracleRetries,
		OracleTimeout:       DefaultOracleTimeout,
		ReflectionEnabled:   true,
		OracleSampleLimit:   DefaultOracleSampleLimit,
		LearningEnabled:     true,
		MemoryExampleCap:    DefaultMemoryExampleCap,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		MemoryPath:          DefaultMemoryPath,
		MaxConcurrent:       DefaultMaxConcurrent,
		Quality:             quality.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.CacheEnabled && c.CacheTTL < 0 {
		return fmt.Errorf("%w: cache_ttl must not be negative", errors.ErrInvalidConfig)
	}
	if c.MaxOracleRetries < 0 {
		return fmt.Errorf("%w: max_oracle_retries must not be negative", errors.ErrInvalidConfig)
	}
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("%w: oracle_timeout must be positive", errors.ErrInvalidConfig)
	}
	if c.OracleSampleLimit < 0 {
		return fmt.Errorf("%w: oracle_sample_limit must not be negative", errors.ErrInvalidConfig)
	}
	if c.MemoryExampleCap <= 0 {
		return fmt.Errorf("%w: memory_example_cap must be positive", errors.ErrInvalidConfig)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold must be in [0,1]", errors.ErrInvalidConfig)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: max_concurrent must be positive", errors.ErrInvalidConfig)
	}
	if c.MemoryPath == "" {
		return fmt.Errorf("%w: memory_path is required", errors.ErrMissingConfig)
	}
	if err := c.Quality.Validate(); err != nil {
		return fmt.Errorf("%w: quality: %v", errors.ErrInvalidConfig, err)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", errors.ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log format %q", errors.ErrInvalidConfig, c.Log.Format)
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// SafeConfig provides thread-safe access to configuration.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a thread-safe config wrapper.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config cannot be nil", errors.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
