// Package config loads runtime configuration for the offline core.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the offline core configuration.
type Config struct {
	// DataDir is the directory holding the local SQLite database.
	DataDir string `yaml:"data_dir"`

	// Remote configures the remote system of record.
	Remote RemoteConfig `yaml:"remote"`

	// Sync configures the reconciliation engine.
	Sync SyncConfig `yaml:"sync"`

	// Session configures the offline session gate.
	Session SessionConfig `yaml:"session"`

	// Effective configures the effective-dated resolver.
	Effective EffectiveConfig `yaml:"effective"`

	// StatusAddr is the listen address for the local status websocket.
	// Empty disables the status hub.
	StatusAddr string `yaml:"status_addr"`
}

// RemoteConfig holds remote service connection settings.
type RemoteConfig struct {
	// BaseURL of the remote JSON API. Required.
	BaseURL string `yaml:"base_url"`

	// Token is the bearer token sent with every request.
	Token string `yaml:"token"`

	// TimeoutSeconds bounds a single remote call. Default: 30.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the remote call timeout as a duration.
func (c RemoteConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SyncConfig holds reconciliation engine settings.
type SyncConfig struct {
	// SeedResources are re-pulled into the local cache on every online
	// transition, independent of the queue drain.
	SeedResources []string `yaml:"seed_resources"`
}

// SessionConfig holds offline session gate settings.
type SessionConfig struct {
	// ValidityHours bounds how old the last online authentication may
	// be for offline use. Zero means presence alone is enough.
	ValidityHours int `yaml:"validity_hours"`
}

// ValidityWindow returns the session validity window as a duration.
func (c SessionConfig) ValidityWindow() time.Duration {
	return time.Duration(c.ValidityHours) * time.Hour
}

// EffectiveConfig holds effective-dated resolver settings.
type EffectiveConfig struct {
	// LookbackDays bounds how far back facts are considered.
	// Default: 400.
	LookbackDays int `yaml:"lookback_days"`
}

// Lookback returns the resolver look-back window as a duration.
func (c EffectiveConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// Default returns a Config with defaults applied.
func Default() *Config {
	return &Config{
		DataDir: "./data",
		Remote: RemoteConfig{
			TimeoutSeconds: 30,
		},
		Effective: EffectiveConfig{
			LookbackDays: 400,
		},
	}
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = 30
	}
	if c.Effective.LookbackDays <= 0 {
		c.Effective.LookbackDays = 400
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if c.Session.ValidityHours < 0 {
		return fmt.Errorf("session.validity_hours must not be negative")
	}
	return nil
}
