// Package config loads facepack settings from an optional YAML file and the
// environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/andresmejia3/facepack/internal/compact"
)

const (
	DefaultSeriesType  = "face_landmark"
	DefaultBatchWindow = 2 * time.Second
	DefaultMaxBatch    = 500
	DefaultDatabaseURL = "postgres://localhost:5432/facepack"
)

// Config is the top-level facepack configuration.
type Config struct {
	SeriesType string            `yaml:"series_type"`
	Vocabulary string            `yaml:"vocabulary"` // "", "mediapipe" or a YAML file path
	Engines    int               `yaml:"engines"`
	Selection  compact.Selection `yaml:"selection"`
	Database   DatabaseConfig    `yaml:"database"`
	Batch      BatchConfig       `yaml:"batch"`
	Webhook    WebhookConfig     `yaml:"webhook"`
	Spool      SpoolConfig       `yaml:"spool"`
	Log        LogConfig         `yaml:"log"`
}

// DatabaseConfig points at the Postgres session store.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// BatchConfig controls how compacted frames are grouped before delivery.
type BatchConfig struct {
	Window   time.Duration `yaml:"window"`
	MaxBatch int           `yaml:"max_batch"`
}

// WebhookConfig targets a time series portal. Portal empty disables it.
type WebhookConfig struct {
	Portal  string        `yaml:"portal"`
	Retries int           `yaml:"retries"`
	Timeout time.Duration `yaml:"timeout"`
}

// SpoolConfig is the local SQLite spool. Path empty disables it.
type SpoolConfig struct {
	Path string `yaml:"path"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path (skipped when empty), applies environment overrides and
// fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

// LoadFile reads a YAML configuration file without defaults or overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SeriesType == "" {
		c.SeriesType = DefaultSeriesType
	}
	if c.Engines <= 0 {
		c.Engines = 1
	}
	if c.Database.URL == "" {
		c.Database.URL = DefaultDatabaseURL
	}
	if c.Batch.Window <= 0 {
		c.Batch.Window = DefaultBatchWindow
	}
	if c.Batch.MaxBatch <= 0 {
		c.Batch.MaxBatch = DefaultMaxBatch
	}
	if c.Webhook.Retries <= 0 {
		c.Webhook.Retries = 3
	}
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("FACEPACK_SERIES_TYPE", &c.SeriesType)
	str("FACEPACK_VOCABULARY", &c.Vocabulary)
	str("FACEPACK_PORTAL", &c.Webhook.Portal)
	str("FACEPACK_SPOOL", &c.Spool.Path)
	str("FACEPACK_LOG_LEVEL", &c.Log.Level)
	str("FACEPACK_LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("FACEPACK_ENGINES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FACEPACK_ENGINES: %w", err)
		}
		c.Engines = n
	}
	if v, ok := lookup("FACEPACK_MAX_BATCH"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FACEPACK_MAX_BATCH: %w", err)
		}
		c.Batch.MaxBatch = n
	}
	if v, ok := lookup("FACEPACK_BATCH_WINDOW"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FACEPACK_BATCH_WINDOW: %w", err)
		}
		c.Batch.Window = d
	}

	// An explicit URL wins over the discrete Postgres variables.
	if v, ok := lookup("FACEPACK_DB_URL"); ok && v != "" {
		c.Database.URL = v
	} else if host, ok := lookup("POSTGRES_HOST"); ok && host != "" {
		get := func(k string) string { v, _ := lookup(k); return v }
		port := get("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		u := &url.URL{Scheme: "postgres", Host: net.JoinHostPort(host, port), Path: "/" + get("POSTGRES_DB")}
		if user := get("POSTGRES_USER"); user != "" {
			if pass := get("POSTGRES_PASSWORD"); pass != "" {
				u.User = url.UserPassword(user, pass)
			} else {
				u.User = url.User(user)
			}
		}
		c.Database.URL = u.String()
	}
	return nil
}

// Validate rejects settings that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Engines < 1 {
		return fmt.Errorf("engines must be >= 1, got %d", c.Engines)
	}
	if c.Batch.MaxBatch < 1 {
		return fmt.Errorf("batch.max_batch must be >= 1, got %d", c.Batch.MaxBatch)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}
