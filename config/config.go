// Package config loads the group directory configuration.
//
// Values are resolved in this order, later sources winning:
//
//  1. Built-in defaults (see Default).
//  2. An optional YAML file.
//  3. An optional .env file, which only fills variables not already set.
//  4. GROUPDIR_* environment variables.
//
// Out-of-range values are logged and replaced by their defaults so a bad
// override never takes the directory down.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "GROUPDIR_"

// Eviction policies accepted by EvictionPolicy.
const (
	// EvictInsertion evicts the oldest-inserted entry first.
	EvictInsertion = "insertion"
	// EvictAccess evicts the least recently read entry first.
	EvictAccess = "access"
)

// Validation bounds.
const (
	MinCacheTTL         = time.Second
	MaxCacheTTL         = 24 * time.Hour
	MinCacheCapacity    = 1
	MaxCacheCapacity    = 100000
	MinSweepInterval    = time.Second
	MaxSweepInterval    = time.Hour
	MinBatchConcurrency = 0
	MaxBatchConcurrency = 1024
	MinInviteQueueSize  = 1
	MaxInviteQueueSize  = 4096
)

// Config holds the tunables of a group directory.
type Config struct {
	// CacheTTL is how long a cached group stays fresh.
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	// CacheCapacity bounds the number of cached groups.
	CacheCapacity int `yaml:"cache_capacity" env:"CACHE_CAPACITY"`
	// SweepInterval is the period of the stale-entry sweep.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	// EvictionPolicy is EvictInsertion or EvictAccess.
	EvictionPolicy string `yaml:"eviction_policy" env:"EVICTION_POLICY"`
	// CollapseDuplicateFetches merges concurrent misses for the same group
	// into one round-trip.
	CollapseDuplicateFetches bool `yaml:"collapse_duplicate_fetches" env:"COLLAPSE_DUPLICATE_FETCHES"`
	// BatchConcurrency limits parallel fetches of one batch read; 0 means
	// unlimited.
	BatchConcurrency int `yaml:"batch_concurrency" env:"BATCH_CONCURRENCY"`
	// InviteQueueSize is the buffer of the invite acceptance queue.
	InviteQueueSize int `yaml:"invite_queue_size" env:"INVITE_QUEUE_SIZE"`
	// LogLevel is a logrus level name.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// Default returns the built-in configuration.
//
// Default Value Rationale:
//   - CacheTTL: 10m - group metadata changes rarely and dirty signals cover the rest
//   - CacheCapacity: 100 - enough for an active account without unbounded growth
//   - SweepInterval: 3m - stale entries do not linger much past their TTL
//   - EvictionPolicy: insertion - oldest-inserted entry goes first
//   - CollapseDuplicateFetches: true - concurrent misses share one round-trip
func Default() *Config {
	return &Config{
		CacheTTL:                 10 * time.Minute,
		CacheCapacity:            100,
		SweepInterval:            3 * time.Minute,
		EvictionPolicy:           EvictInsertion,
		CollapseDuplicateFetches: true,
		BatchConcurrency:         0,
		InviteQueueSize:          16,
		LogLevel:                 "info",
	}
}

// Options controls where Load looks for configuration.
type Options struct {
	// File is an optional YAML file path.
	File string
	// DotEnv is an optional .env file path.
	DotEnv string
}

// Load resolves the configuration from defaults, files and environment.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := cfg.mergeFile(opts.File); err != nil {
			return nil, err
		}
	}

	if opts.DotEnv != "" {
		if err := godotenv.Load(opts.DotEnv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load dotenv %s: %w", opts.DotEnv, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyBounds()
	logConfigurationInfo(cfg)

	return cfg, nil
}

// mergeFile overlays the YAML file at path onto c.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate reports the first out-of-range field. Configurations built by
// Load always validate; this is for configurations assembled in code.
func (c *Config) Validate() error {
	switch {
	case c.CacheTTL < MinCacheTTL || c.CacheTTL > MaxCacheTTL:
		return fmt.Errorf("cache_ttl %s out of range [%s, %s]", c.CacheTTL, MinCacheTTL, MaxCacheTTL)
	case c.CacheCapacity < MinCacheCapacity || c.CacheCapacity > MaxCacheCapacity:
		return fmt.Errorf("cache_capacity %d out of range [%d, %d]", c.CacheCapacity, MinCacheCapacity, MaxCacheCapacity)
	case c.SweepInterval < MinSweepInterval || c.SweepInterval > MaxSweepInterval:
		return fmt.Errorf("sweep_interval %s out of range [%s, %s]", c.SweepInterval, MinSweepInterval, MaxSweepInterval)
	case c.EvictionPolicy != EvictInsertion && c.EvictionPolicy != EvictAccess:
		return fmt.Errorf("eviction_policy %q must be %q or %q", c.EvictionPolicy, EvictInsertion, EvictAccess)
	case c.BatchConcurrency < MinBatchConcurrency || c.BatchConcurrency > MaxBatchConcurrency:
		return fmt.Errorf("batch_concurrency %d out of range [%d, %d]", c.BatchConcurrency, MinBatchConcurrency, MaxBatchConcurrency)
	case c.InviteQueueSize < MinInviteQueueSize || c.InviteQueueSize > MaxInviteQueueSize:
		return fmt.Errorf("invite_queue_size %d out of range [%d, %d]", c.InviteQueueSize, MinInviteQueueSize, MaxInviteQueueSize)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Level returns the configured log level, falling back to Info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// applyBounds replaces out-of-range values with their defaults.
func (c *Config) applyBounds() {
	def := Default()

	if c.CacheTTL < MinCacheTTL || c.CacheTTL > MaxCacheTTL {
		warnOutOfBounds("cache_ttl", c.CacheTTL, MinCacheTTL, MaxCacheTTL, def.CacheTTL)
		c.CacheTTL = def.CacheTTL
	}
	if c.CacheCapacity < MinCacheCapacity || c.CacheCapacity > MaxCacheCapacity {
		warnOutOfBounds("cache_capacity", c.CacheCapacity, MinCacheCapacity, MaxCacheCapacity, def.CacheCapacity)
		c.CacheCapacity = def.CacheCapacity
	}
	if c.SweepInterval < MinSweepInterval || c.SweepInterval > MaxSweepInterval {
		warnOutOfBounds("sweep_interval", c.SweepInterval, MinSweepInterval, MaxSweepInterval, def.SweepInterval)
		c.SweepInterval = def.SweepInterval
	}
	if c.EvictionPolicy != EvictInsertion && c.EvictionPolicy != EvictAccess {
		logrus.WithFields(logrus.Fields{
			"function":    "applyBounds",
			"setting":     "eviction_policy",
			"value":       c.EvictionPolicy,
			"using_value": def.EvictionPolicy,
		}).Warn("Unknown eviction policy, using default")
		c.EvictionPolicy = def.EvictionPolicy
	}
	if c.BatchConcurrency < MinBatchConcurrency || c.BatchConcurrency > MaxBatchConcurrency {
		warnOutOfBounds("batch_concurrency", c.BatchConcurrency, MinBatchConcurrency, MaxBatchConcurrency, def.BatchConcurrency)
		c.BatchConcurrency = def.BatchConcurrency
	}
	if c.InviteQueueSize < MinInviteQueueSize || c.InviteQueueSize > MaxInviteQueueSize {
		warnOutOfBounds("invite_queue_size", c.InviteQueueSize, MinInviteQueueSize, MaxInviteQueueSize, def.InviteQueueSize)
		c.InviteQueueSize = def.InviteQueueSize
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "applyBounds",
			"setting":     "log_level",
			"value":       c.LogLevel,
			"error":       err.Error(),
			"using_value": def.LogLevel,
		}).Warn("Failed to parse log level, using default")
		c.LogLevel = def.LogLevel
	}
}

func warnOutOfBounds(setting string, value, min, max, using any) {
	logrus.WithFields(logrus.Fields{
		"function":    "applyBounds",
		"setting":     setting,
		"value":       value,
		"min":         min,
		"max":         max,
		"using_value": using,
	}).Warn("Configuration value out of bounds, using default")
}

// logConfigurationInfo logs the effective configuration.
func logConfigurationInfo(c *Config) {
	logrus.WithFields(logrus.Fields{
		"function":                   "Load",
		"cache_ttl":                  c.CacheTTL,
		"cache_capacity":             c.CacheCapacity,
		"sweep_interval":             c.SweepInterval,
		"eviction_policy":            c.EvictionPolicy,
		"collapse_duplicate_fetches": c.CollapseDuplicateFetches,
		"batch_concurrency":          c.BatchConcurrency,
		"invite_queue_size":          c.InviteQueueSize,
		"log_level":                  c.LogLevel,
	}).Info("Loaded group directory configuration")
}
