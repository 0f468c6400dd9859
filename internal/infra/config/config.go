// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Player   PlayerConfig   `yaml:"player"`
	Playback PlaybackConfig `yaml:"playback"`
	Library  LibraryConfig  `yaml:"library"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// PlayerConfig describes the external player binary and how it is launched.
type PlayerConfig struct {
	Binary      string         `yaml:"binary" default:"afplay" validate:"required"`
	Args        []string       `yaml:"args" default:"[\"-v\",\"{volume}\",\"{path}\"]" validate:"min=1"`
	KillGraceMs int            `yaml:"kill_grace_ms" default:"50" validate:"gte=0,lte=5000"`
	Launcher    LauncherConfig `yaml:"launcher"`
}

// LauncherConfig selects the launch strategy. Settings are decoded by the
// launcher itself.
type LauncherConfig struct {
	Type     string         `yaml:"type" default:"exec" validate:"oneof=exec shell"`
	Settings map[string]any `yaml:"settings"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	InitialVolume  int `yaml:"initial_volume" default:"80" validate:"gte=0,lte=100"`
	StartupGraceMs int `yaml:"startup_grace_ms" default:"1000" validate:"gte=0,lte=10000"`
	PollIntervalMs int `yaml:"poll_interval_ms" default:"100" validate:"gte=10,lte=10000"`
}

// LibraryConfig represents the music directory configuration.
type LibraryConfig struct {
	Dir             string `yaml:"dir"`
	Watch           bool   `yaml:"watch"`
	WatchDebounceMs int    `yaml:"watch_debounce_ms" default:"500" validate:"gte=0,lte=60000"`
}

// MetricsConfig represents the metrics endpoint configuration.
// An empty address disables the endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output     string `yaml:"output" default:"stdout"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"10" validate:"gte=1"`
	MaxBackups int    `yaml:"max_backups" default:"3" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" default:"28" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

// Load loads configuration from a YAML file.
// An empty path yields the defaults. Keys missing from the file keep their
// defaults; keys present, including zero values, replace them. Environment variables take precedence
// over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	// Defaults go first so explicit zero values in the file are kept
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("TRACKBOX_PLAYER_BINARY"); v != "" {
		c.Player.Binary = v
	}
	if v := os.Getenv("TRACKBOX_MUSIC_DIR"); v != "" {
		c.Library.Dir = v
	}
	if v := os.Getenv("TRACKBOX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TRACKBOX_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// KillGrace returns the wait between the terminate and kill signals.
func (c *PlayerConfig) KillGrace() time.Duration {
	return time.Duration(c.KillGraceMs) * time.Millisecond
}

// StartupGrace returns the window after a start in which completion is not reported.
func (c *PlaybackConfig) StartupGrace() time.Duration {
	return time.Duration(c.StartupGraceMs) * time.Millisecond
}

// PollInterval returns the auto-advance polling interval.
func (c *PlaybackConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// WatchDebounce returns the delay used to coalesce directory change events.
func (c *LibraryConfig) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMs) * time.Millisecond
}
