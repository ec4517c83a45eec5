// Package config loads frameforge configuration.
// Source priority (highest to lowest):
// 1. Environment variables (FRAMEFORGE_DATA_DIR, FRAMEFORGE_ENGINE, ...)
// 2. Config file path given via --config flag
// 3. ~/.config/frameforge/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig describes the local generation subprocess.
type EngineConfig struct {
	// Command is the executable spawned for each generation request.
	Command string `yaml:"command"`

	// Args are prepended to every invocation, before per-request flags.
	Args []string `yaml:"args"`

	// Model is the model name reported in generation metadata.
	Model string `yaml:"model"`

	// Timeout is the hard wall-clock limit per generation; the process is
	// killed on expiry.
	Timeout time.Duration `yaml:"timeout"`
}

// RetryConfig controls retry behavior for transient engine failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// MetricsConfig bounds the in-memory operation metrics window.
type MetricsConfig struct {
	MaxRecords int           `yaml:"max_records"`
	Retention  time.Duration `yaml:"retention"`
}

// Config is the complete configuration for the frameforge server.
type Config struct {
	// DataDir is the root for all persisted session state.
	DataDir string `yaml:"data_dir"`

	// LedgerPath is the sqlite generation ledger. Empty = <data_dir>/ledger.db.
	LedgerPath string `yaml:"ledger_path"`

	Engine  EngineConfig  `yaml:"engine"`
	Retry   RetryConfig   `yaml:"retry"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DefaultConfig returns the defaults applied before file and env overrides.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Command: "frameforge-engine",
			Model:   "sd-turbo",
			Timeout: 5 * time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    30 * time.Second,
		},
		Metrics: MetricsConfig{
			MaxRecords: 1000,
			Retention:  time.Hour,
		},
	}
}

// Load reads the config file and merges environment variable overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configPath = filepath.Join(home, ".config", "frameforge", "config.yaml")
		}
	}

	// Missing file means defaults; a present but invalid file is an error.
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".frameforge")
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = filepath.Join(cfg.DataDir, "ledger.db")
	}
	return cfg, nil
}

// SessionsDir returns the directory holding per-session state.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FRAMEFORGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FRAMEFORGE_ENGINE"); v != "" {
		cfg.Engine.Command = v
	}
	if v := os.Getenv("FRAMEFORGE_MODEL"); v != "" {
		cfg.Engine.Model = v
	}
	if v := os.Getenv("FRAMEFORGE_ENGINE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.Timeout = d
		}
	}
	if v := os.Getenv("FRAMEFORGE_LEDGER"); v != "" {
		cfg.LedgerPath = v
	}
}
