// Package config loads the content engine's own YAML configuration and
// reads the watchdog sibling component's ancillary text files (spec
// §6.5). Grounded on beads' own config loading in cmd/bd/config.go,
// which spins up a scoped `viper.New()` pointed at a specific yaml
// file rather than relying on viper's global instance.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/snapwebsites/contentengine/internal/worker"
)

// Config holds the knobs a content-engine process needs at startup:
// which sites it serves, where its storage lives, and the background
// worker's cadence (spec §4.8, §6.3's `content::snapbackend`).
type Config struct {
	Sites []string `mapstructure:"sites" yaml:"sites"`

	Storage struct {
		Driver string `mapstructure:"driver" yaml:"driver"` // "bolt" or "mem"
		Path   string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"storage" yaml:"storage"`

	Worker struct {
		IntervalSeconds        int `mapstructure:"interval_seconds" yaml:"interval_seconds"`
		JournalAgeSeconds      int `mapstructure:"journal_age_seconds" yaml:"journal_age_seconds"`
		AttachmentBatch        int `mapstructure:"attachment_batch" yaml:"attachment_batch"`
		SiteConcurrency        int `mapstructure:"site_concurrency" yaml:"site_concurrency"`
		MaxRetryElapsedSeconds int `mapstructure:"max_retry_elapsed_seconds" yaml:"max_retry_elapsed_seconds"`
	} `mapstructure:"worker" yaml:"worker"`
}

func (c Config) withDefaults() Config {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "bolt"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "contentengine.db"
	}
	if c.Worker.IntervalSeconds <= 0 {
		c.Worker.IntervalSeconds = 300
	}
	if c.Worker.JournalAgeSeconds <= 0 {
		c.Worker.JournalAgeSeconds = 300
	}
	if c.Worker.AttachmentBatch <= 0 {
		c.Worker.AttachmentBatch = 100
	}
	if c.Worker.SiteConcurrency <= 0 {
		c.Worker.SiteConcurrency = 4
	}
	if c.Worker.MaxRetryElapsedSeconds <= 0 {
		c.Worker.MaxRetryElapsedSeconds = 60
	}
	return c
}

// Interval returns the worker's configured tick cadence as a Duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Worker.IntervalSeconds) * time.Second
}

// JournalAgeMicros returns the journal reap-age threshold in
// microseconds, the unit spec §3's clock and `internal/journal` use.
func (c Config) JournalAgeMicros() int64 {
	return int64(c.Worker.JournalAgeSeconds) * 1_000_000
}

// MaxRetryElapsed returns the worker's per-site retry budget.
func (c Config) MaxRetryElapsed() time.Duration {
	return time.Duration(c.Worker.MaxRetryElapsedSeconds) * time.Second
}

// WorkerRunConfig translates the loaded config into the shape
// internal/worker.Engine.Run expects.
func (c Config) WorkerRunConfig() worker.RunConfig {
	return worker.RunConfig{
		Sites:            c.Sites,
		JournalAgeMicros: c.JournalAgeMicros(),
		AttachmentBatch:  c.Worker.AttachmentBatch,
		Interval:         c.Interval(),
		SiteConcurrency:  c.Worker.SiteConcurrency,
		MaxRetryElapsed:  c.MaxRetryElapsed(),
	}
}

// Load reads a contentengine.yaml file at path into a Config, applying
// defaults for anything left unset.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}
