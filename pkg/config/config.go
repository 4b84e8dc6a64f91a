// Package config loads and validates the engine's configuration from a YAML
// file with environment-variable overrides, following the reference
// platform's config-loading shape: a Load(path) that starts from defaults,
// unmarshals YAML on top, then applies FTINDEX_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/arjunvsood/ftindex/engine"
	"github.com/arjunvsood/ftindex/hash"
	"github.com/arjunvsood/ftindex/pkg/ftxerr"
)

// Config is the top-level configuration for an embedding application.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// EngineConfig mirrors engine.Options' scalar fields; Store and the
// tokenizer functions are always supplied programmatically since they name
// Go values a YAML file cannot express.
type EngineConfig struct {
	BaseDir                   string `yaml:"baseDir"`
	WordSegmentTokenThreshold uint64 `yaml:"wordSegmentTokenThreshold"`
	CharSegmentTokenThreshold uint64 `yaml:"charSegmentTokenThreshold"`
	MinWordTokenSave          uint64 `yaml:"minWordTokenSave"`
	MinCharTokenSave          uint64 `yaml:"minCharTokenSave"`
	HashAlgorithm             int    `yaml:"hashAlgorithm"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls whether the engine is wired with Prometheus
// collectors.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads a YAML config file (if path is non-empty) and applies
// environment-variable overrides, returning a Config populated with
// defaults for any value left unset.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Engine.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			WordSegmentTokenThreshold: 100000,
			CharSegmentTokenThreshold: 500000,
			MinWordTokenSave:          0,
			MinCharTokenSave:          0,
			HashAlgorithm:             64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func (c EngineConfig) validate() error {
	if c.MinWordTokenSave >= c.WordSegmentTokenThreshold {
		return ftxerr.Wrap(ftxerr.ErrConfigInvalid, "config.Load", "engine.minWordTokenSave must be < engine.wordSegmentTokenThreshold")
	}
	if c.MinCharTokenSave >= c.CharSegmentTokenThreshold {
		return ftxerr.Wrap(ftxerr.ErrConfigInvalid, "config.Load", "engine.minCharTokenSave must be < engine.charSegmentTokenThreshold")
	}
	if c.HashAlgorithm != 32 && c.HashAlgorithm != 64 {
		return ftxerr.Wrap(ftxerr.ErrConfigInvalid, "config.Load", "engine.hashAlgorithm must be 32 or 64")
	}
	return nil
}

// ApplyTo copies this EngineConfig's threshold, min-save and hash settings
// onto opts, leaving Store and any already-set tokenizer functions
// untouched. BaseDir is not copied: engine.Options has no base-directory
// field.
func (c EngineConfig) ApplyTo(opts *engine.Options) {
	opts.WordSegmentTokenThreshold = c.WordSegmentTokenThreshold
	opts.CharSegmentTokenThreshold = c.CharSegmentTokenThreshold
	opts.MinWordTokenSave = c.MinWordTokenSave
	opts.MinCharTokenSave = c.MinCharTokenSave
	if c.HashAlgorithm == 32 {
		opts.HashAlgorithm = hash.Width32
	} else {
		opts.HashAlgorithm = hash.Width64
	}
}

// applyEnvOverrides reads FTINDEX_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FTINDEX_BASE_DIR"); v != "" {
		cfg.Engine.BaseDir = v
	}
	if v := os.Getenv("FTINDEX_WORD_SEGMENT_TOKEN_THRESHOLD"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.WordSegmentTokenThreshold = n
		}
	}
	if v := os.Getenv("FTINDEX_CHAR_SEGMENT_TOKEN_THRESHOLD"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.CharSegmentTokenThreshold = n
		}
	}
	if v := os.Getenv("FTINDEX_MIN_WORD_TOKEN_SAVE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.MinWordTokenSave = n
		}
	}
	if v := os.Getenv("FTINDEX_MIN_CHAR_TOKEN_SAVE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.MinCharTokenSave = n
		}
	}
	if v := os.Getenv("FTINDEX_HASH_ALGORITHM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.HashAlgorithm = n
		}
	}
	if v := os.Getenv("FTINDEX_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FTINDEX_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("FTINDEX_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
}
