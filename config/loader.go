package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/pointmap/errors"
	"github.com/c360/pointmap/quality"
)

// DefaultEnvPrefix is the prefix for environment variable overrides.
const DefaultEnvPrefix = "POINTMAP"

// Loader loads configuration from a YAML file, applies environment
// overrides, then validates the result.
type Loader struct {
	envPrefix string
}

// NewLoader creates a loader using DefaultEnvPrefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: DefaultEnvPrefix}
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	if prefix != "" {
		l.envPrefix = prefix
	}
	return l
}

// fileConfig mirrors Config with optional fields so absent keys keep their
// defaults. Durations are strings ("30s", "1h") since YAML has no native
// duration scalar.
type fileConfig struct {
	CacheEnabled        *bool           `yaml:"cache_enabled"`
	CacheTTL            *string         `yaml:"cache_ttl"`
	CachePath           *string         `yaml:"cache_path"`
	MaxOracleRetries    *int            `yaml:"max_oracle_retries"`
	OracleTimeout       *string         `yaml:"oracle_timeout"`
	ReflectionEnabled   *bool           `yaml:"reflection_enabled"`
	OracleSampleLimit   *int            `yaml:"oracle_sample_limit"`
	LearningEnabled     *bool           `yaml:"learning_enabled"`
	MemoryExampleCap    *int            `yaml:"memory_example_cap"`
	ConfidenceThreshold *float64        `yaml:"confidence_threshold"`
	MemoryPath          *string         `yaml:"memory_path"`
	MaxConcurrent       *int            `yaml:"max_concurrent"`
	Quality             *quality.Config `yaml:"quality"`
	Log                 *LogConfig      `yaml:"log"`
}

// Load reads configuration from path. An empty path loads defaults plus
// environment overrides only.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %s failed: %w", path, err)
		}

		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("config.Load: parse %s failed: %w", path, err)
		}
		if err := fc.apply(cfg); err != nil {
			return nil, fmt.Errorf("config.Load: %s: %w", path, err)
		}
	}

	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	if fc.CacheEnabled != nil {
		cfg.CacheEnabled = *fc.CacheEnabled
	}
	if fc.CacheTTL != nil {
		d, err := time.ParseDuration(*fc.CacheTTL)
		if err != nil {
			return fmt.Errorf("%w: cache_ttl %q", errors.ErrInvalidConfig, *fc.CacheTTL)
		}
		cfg.CacheTTL = d
	}
	if fc.CachePath != nil {
		cfg.CachePath = *fc.CachePath
	}
	if fc.MaxOracleRetries != nil {
		cfg.MaxOracleRetries = *fc.MaxOracleRetries
	}
	if fc.OracleTimeout != nil {
		d, err := time.ParseDuration(*fc.OracleTimeout)
		if err != nil {
			return fmt.Errorf("%w: oracle_timeout %q", errors.ErrInvalidConfig, *fc.OracleTimeout)
		}
		cfg.OracleTimeout = d
	}
	if fc.ReflectionEnabled != nil {
		cfg.ReflectionEnabled = *fc.ReflectionEnabled
	}
	if fc.OracleSampleLimit != nil {
		cfg.OracleSampleLimit = *fc.OracleSampleLimit
	}
	if fc.LearningEnabled != nil {
		cfg.LearningEnabled = *fc.LearningEnabled
	}
	if fc.MemoryExampleCap != nil {
		cfg.MemoryExampleCap = *fc.MemoryExampleCap
	}
	if fc.ConfidenceThreshold != nil {
		cfg.ConfidenceThreshold = *fc.ConfidenceThreshold
	}
	if fc.MemoryPath != nil {
		cfg.MemoryPath = *fc.MemoryPath
	}
	if fc.MaxConcurrent != nil {
		cfg.MaxConcurrent = *fc.MaxConcurrent
	}
	if fc.Quality != nil {
		cfg.Quality = *fc.Quality
	}
	if fc.Log != nil {
		if fc.Log.Level != "" {
			cfg.Log.Level = fc.Log.Level
		}
		if fc.Log.Format != "" {
			cfg.Log.Format = fc.Log.Format
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_CACHE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.CacheEnabled = b
		}
	}
	if val := os.Getenv(l.envPrefix + "_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.CacheTTL = d
		}
	}
	if val := os.Getenv(l.envPrefix + "_CACHE_PATH"); val != "" {
		cfg.CachePath = val
	}
	if val := os.Getenv(l.envPrefix + "_MAX_ORACLE_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.MaxOracleRetries = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_ORACLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.OracleTimeout = d
		}
	}
	if val := os.Getenv(l.envPrefix + "_REFLECTION_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.ReflectionEnabled = b
		}
	}
	if val := os.Getenv(l.envPrefix + "_ORACLE_SAMPLE_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.OracleSampleLimit = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_LEARNING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.LearningEnabled = b
		}
	}
	if val := os.Getenv(l.envPrefix + "_MEMORY_EXAMPLE_CAP"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.MemoryExampleCap = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_CONFIDENCE_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.ConfidenceThreshold = f
		}
	}
	if val := os.Getenv(l.envPrefix + "_MEMORY_PATH"); val != "" {
		cfg.MemoryPath = val
	}
	if val := os.Getenv(l.envPrefix + "_MAX_CONCURRENT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.MaxConcurrent = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv(l.envPrefix + "_LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
}

// MustLoad is Load for program startup paths where a bad config is fatal.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
