// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/shopspring/decimal"

	"costpilot/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Database contains cost record store configuration
	Database DatabaseConfig `json:"database"`

	// Worker contains batch worker configuration
	Worker WorkerConfig `json:"worker"`

	// Detection contains spike detection configuration
	Detection DetectionConfig `json:"detection"`

	// Notification contains spike notification configuration
	Notification NotificationConfig `json:"notification,omitempty"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// DatabaseConfig contains cost record store settings
type DatabaseConfig struct {
	// DSN is the PostgreSQL connection string
	DSN string `json:"dsn"`

	// MaxOpenConns limits open connections
	MaxOpenConns int `json:"max_open_conns"`
}

// WorkerConfig contains batch worker settings
type WorkerConfig struct {
	// RunIntervalHours is the interval between runs (minimum 1)
	RunIntervalHours int `json:"run_interval_hours"`

	// SyncDays is the cost sync window in days
	SyncDays int `json:"sync_days"`
}

// DetectionConfig contains spike detection settings
type DetectionConfig struct {
	// SpikeThreshold is the minimum day-over-day difference, in currency
	// units, for a spike. Values <= 0 fall back to the default of 5.
	SpikeThreshold float64 `json:"spike_threshold"`
}

// Threshold returns the configured spike threshold as a decimal
func (c DetectionConfig) Threshold() decimal.Decimal {
	return decimal.NewFromFloat(c.SpikeThreshold)
}

// NotificationConfig contains spike notification settings
type NotificationConfig struct {
	// Enabled turns spike notifications on
	Enabled bool `json:"enabled"`

	// FromEmail is the sender address
	FromEmail string `json:"from_email,omitempty"`

	// Recipients maps user IDs to notification addresses
	Recipients map[string]string `json:"recipients,omitempty"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Version: "1",
		Database: DatabaseConfig{
			DSN:          "postgres://localhost:5432/costpilot?sslmode=disable",
			MaxOpenConns: 8,
		},
		Worker: WorkerConfig{
			RunIntervalHours: 24,
			SyncDays:         7,
		},
		Detection: DetectionConfig{
			SpikeThreshold: 5,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads configuration from a JSON file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.Worker.RunIntervalHours < 1 {
		cfg.Worker.RunIntervalHours = 1
	}
	return cfg, nil
}

var (
	mu      sync.RWMutex
	current = Default()
)

// Get returns the active configuration
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Set replaces the active configuration
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	current = cfg
}
