// Package config loads the YAML server configuration.
//
// The business timezone is intentionally NOT configurable here: every
// "now"/"today" decision uses the fixed zone in the schedule package so
// the agenda never drifts with a deployment machine's locale.
package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite database path. ":memory:" works for dev.
	DBPath string `yaml:"db_path"`

	// AssetDir is where uploaded flyers are written.
	AssetDir string `yaml:"asset_dir"`

	// PublicBaseURL is the URL prefix under which AssetDir is served.
	PublicBaseURL string `yaml:"public_base_url"`

	// PurgeCron is a cron-style schedule for purging stale staging
	// batches (e.g. "0 4 * * *").
	PurgeCron string `yaml:"purge_cron"`

	// StaleAfterHours is how long an untouched staging batch lives.
	StaleAfterHours int `yaml:"stale_after_hours"`
}

// Default returns an in-memory default configuration.
func Default() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		DBPath:          "agenda.db",
		AssetDir:        "./data/flyers",
		PublicBaseURL:   "http://127.0.0.1:8080/flyers",
		PurgeCron:       "0 4 * * *",
		StaleAfterHours: 48,
	}
}

// Normalize fills missing/zero values so partially-filled configs still
// behave.
func (c *Config) Normalize() {
	d := Default()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.AssetDir == "" {
		c.AssetDir = d.AssetDir
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = d.PublicBaseURL
	}
	if c.PurgeCron == "" {
		c.PurgeCron = d.PurgeCron
	}
	if c.StaleAfterHours <= 0 {
		c.StaleAfterHours = d.StaleAfterHours
	}
}

// Load reads the YAML config at path. A missing file yields the defaults
// rather than an error, so first runs work without setup.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}
