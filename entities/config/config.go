//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package config defines the typed configuration for the twin update
// pipeline, per spec.md §6's enumerated configuration keys, loaded from a
// YAML file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// CacheConfig mirrors spec.md's `cache.{thing,policy}.{capacity,ttl,
// dispatcher,retryDelay}` keys for one cache.
type CacheConfig struct {
	Capacity   int           `yaml:"capacity"`
	TTL        time.Duration `yaml:"ttl"`
	Dispatcher string        `yaml:"dispatcher"`
	RetryDelay time.Duration `yaml:"retryDelay"`
}

// AskConfig mirrors spec.md's `ask.{timeout,retries,backoff}` keys.
type AskConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
}

// Config is the complete configuration surface of the twin update
// pipeline.
type Config struct {
	MaxArraySize       int           `yaml:"maxArraySize"`
	MaxBulkSize        int           `yaml:"maxBulkSize"`
	MaxBulkDelay       time.Duration `yaml:"maxBulkDelay"`
	Parallelism        int           `yaml:"parallelism"`
	PatchSizeThreshold int           `yaml:"patchSizeThreshold"`
	UpdaterIdleTimeout time.Duration `yaml:"updaterIdleTimeout"`
	ShutdownDrain      time.Duration `yaml:"shutdownDrainTimeout"`

	CacheThing  CacheConfig `yaml:"cacheThing"`
	CachePolicy CacheConfig `yaml:"cachePolicy"`
	Ask         AskConfig   `yaml:"ask"`

	MongoURI        string `yaml:"mongoUri"`
	MongoDatabase   string `yaml:"mongoDatabase"`
	MongoCollection string `yaml:"mongoCollection"`
}

// Default returns the built-in defaults, overridden by a config file and
// then by environment variables.
func Default() Config {
	return Config{
		MaxArraySize:       100,
		MaxBulkSize:        1000,
		MaxBulkDelay:       500 * time.Millisecond,
		Parallelism:        4,
		PatchSizeThreshold: 16 * 1024,
		UpdaterIdleTimeout: 10 * time.Minute,
		ShutdownDrain:      30 * time.Second,
		CacheThing: CacheConfig{
			Capacity:   50_000,
			TTL:        10 * time.Minute,
			Dispatcher: "thing-cache-dispatcher",
			RetryDelay: 2 * time.Second,
		},
		CachePolicy: CacheConfig{
			Capacity:   50_000,
			TTL:        10 * time.Minute,
			Dispatcher: "policy-cache-dispatcher",
			RetryDelay: 2 * time.Second,
		},
		Ask: AskConfig{
			Timeout: 5 * time.Second,
			Retries: 3,
			Backoff: 200 * time.Millisecond,
		},
		MongoDatabase:   "search",
		MongoCollection: "searchIndex",
	}
}

// Load reads a YAML config file (if path is non-empty) on top of
// Default(), then applies environment-variable overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config file %q", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config file %q", path)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "apply environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "validate config")
	}

	return cfg, nil
}

// Validate checks invariants a misconfigured deployment would violate.
func (c Config) Validate() error {
	if c.MaxBulkSize <= 0 {
		return fmt.Errorf("maxBulkSize must be positive, got %d", c.MaxBulkSize)
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive, got %d", c.Parallelism)
	}
	if c.MongoURI == "" {
		return fmt.Errorf("mongoUri must be set")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	overrides := []struct {
		env   string
		apply func(string) error
	}{
		{"TWINUPDATE_MAX_ARRAY_SIZE", intSetter(&cfg.MaxArraySize)},
		{"TWINUPDATE_MAX_BULK_SIZE", intSetter(&cfg.MaxBulkSize)},
		{"TWINUPDATE_MAX_BULK_DELAY", durationSetter(&cfg.MaxBulkDelay)},
		{"TWINUPDATE_PARALLELISM", intSetter(&cfg.Parallelism)},
		{"TWINUPDATE_PATCH_SIZE_THRESHOLD", intSetter(&cfg.PatchSizeThreshold)},
		{"TWINUPDATE_IDLE_TIMEOUT", durationSetter(&cfg.UpdaterIdleTimeout)},
		{"TWINUPDATE_SHUTDOWN_DRAIN_TIMEOUT", durationSetter(&cfg.ShutdownDrain)},
		{"TWINUPDATE_MONGO_URI", stringSetter(&cfg.MongoURI)},
		{"TWINUPDATE_MONGO_DATABASE", stringSetter(&cfg.MongoDatabase)},
		{"TWINUPDATE_MONGO_COLLECTION", stringSetter(&cfg.MongoCollection)},
	}

	for _, o := range overrides {
		val, ok := os.LookupEnv(o.env)
		if !ok {
			continue
		}
		if err := o.apply(val); err != nil {
			return errors.Wrapf(err, "env %s=%q", o.env, val)
		}
	}
	return nil
}

func intSetter(dst *int) func(string) error {
	return func(val string) error {
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func durationSetter(dst *time.Duration) func(string) error {
	return func(val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func stringSetter(dst *string) func(string) error {
	return func(val string) error {
		*dst = val
		return nil
	}
}
