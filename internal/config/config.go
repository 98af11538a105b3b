// Copyright 2025 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads sdutil configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var errInvalidConfig = errors.New("invalid config")

// Cache backends.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendRedis    = "redis"
)

// Config is the top-level configuration.
type Config struct {
	DataDirs []string      `yaml:"dataDirs"`
	Order    string        `yaml:"order"`
	Cache    CacheConfig   `yaml:"cache"`
	Logging  LoggingConfig `yaml:"logging"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// CacheConfig configures the index cache.
type CacheConfig struct {
	// Backend is one of none, memory, sqlite, postgres, bolt or redis.
	Backend string `yaml:"backend"`

	// Path is the database file for the sqlite and bolt backends.
	Path string `yaml:"path"`

	// DSN is the lib/pq data source name for the postgres backend.
	DSN string `yaml:"dsn"`

	Redis RedisConfig `yaml:"redis"`

	// Compression is the cache payload compression (none, lz4 or zstd).
	Compression string `yaml:"compression"`

	StaleAfter   time.Duration `yaml:"staleAfter"`
	WaitTimeout  time.Duration `yaml:"waitTimeout"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls metrics output.
type MetricsConfig struct {
	// Textfile is a file the metrics are written to on exit in the
	// Prometheus text format. Empty disables metrics.
	Textfile string `yaml:"textfile"`
}

// Load reads a YAML config file (if provided) and applies environment
// variable overrides. Missing values are populated with defaults.
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
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config with defaults for local use.
func defaultConfig() *Config {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return &Config{
		Order: "folded",
		Cache: CacheConfig{
			Backend:      BackendSQLite,
			Path:         filepath.Join(cacheDir, "sdutil", "index.db"),
			Compression:  "zstd",
			StaleAfter:   10 * time.Minute,
			WaitTimeout:  30 * time.Second,
			PollInterval: 100 * time.Millisecond,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "sdengine",
			},
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// applyEnvOverrides reads SDUTIL_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SDUTIL_DATA_DIRS"); v != "" {
		cfg.DataDirs = filepath.SplitList(v)
	}
	if v := os.Getenv("SDUTIL_ORDER"); v != "" {
		cfg.Order = v
	}
	if v := os.Getenv("SDUTIL_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("SDUTIL_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("SDUTIL_CACHE_DSN"); v != "" {
		cfg.Cache.DSN = v
	}
	if v := os.Getenv("SDUTIL_CACHE_COMPRESSION"); v != "" {
		cfg.Cache.Compression = v
	}
	if v := os.Getenv("SDUTIL_CACHE_STALE_AFTER"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.StaleAfter = d
		}
	}
	if v := os.Getenv("SDUTIL_CACHE_WAIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.WaitTimeout = d
		}
	}
	if v := os.Getenv("SDUTIL_CACHE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.PollInterval = d
		}
	}
	if v := os.Getenv("SDUTIL_REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("SDUTIL_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}
	if v := os.Getenv("SDUTIL_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Redis.DB = db
		}
	}
	if v := os.Getenv("SDUTIL_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SDUTIL_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SDUTIL_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
}

func (c *Config) validate() error {
	c.Cache.Backend = strings.ToLower(c.Cache.Backend)
	switch c.Cache.Backend {
	case BackendNone, BackendMemory, BackendRedis:
	case BackendSQLite, BackendBolt:
		if c.Cache.Path == "" {
			return fmt.Errorf("%w: cache.path is required for the %s backend", errInvalidConfig, c.Cache.Backend)
		}
	case BackendPostgres:
		if c.Cache.DSN == "" {
			return fmt.Errorf("%w: cache.dsn is required for the postgres backend", errInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", errInvalidConfig, c.Cache.Backend)
	}
	if c.Cache.PollInterval <= 0 {
		return fmt.Errorf("%w: cache.pollInterval must be positive", errInvalidConfig)
	}
	return nil
}
