// Package config defines process configuration and its loading.
//
// Conventions:
// - New returns a Config filled with defaults.
// - Load layers a YAML file and PODIUM_* environment variables on top.
// - Validate reports problems wrapped in ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Store drivers accepted by StoreDriver.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// StoreDriver selects the record store: memory, sqlite or badger.
	StoreDriver string `koanf:"store_driver"`

	// SQLiteDSN is the gorm/sqlite data source, e.g. "file:podium.db".
	SQLiteDSN string `koanf:"sqlite_dsn"`

	// BadgerPath is the Badger data directory.
	BadgerPath string `koanf:"badger_path"`

	// BadgerInMemory runs Badger without touching disk.
	BadgerInMemory bool `koanf:"badger_in_memory"`

	// MaxChainLength bounds a history traversal.
	MaxChainLength int `koanf:"max_chain_length"`

	// MaxConflictRetries bounds optimistic re-runs of one submission.
	MaxConflictRetries int `koanf:"max_conflict_retries"`

	// WorkerCount sets the number of ingest workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the ingest queues across all workers.
	QueueSize int `koanf:"queue_size"`

	// MetricsNamespace prefixes every exported metric.
	MetricsNamespace string `koanf:"metrics_namespace"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		StoreDriver:        DriverMemory,
		SQLiteDSN:          "file:podium.db",
		BadgerPath:         "data/badger",
		MaxChainLength:     10_000,
		MaxConflictRetries: 16,
		WorkerCount:        runtime.NumCPU() * 2,
		QueueSize:          10_000,
		MetricsNamespace:   "podium",
	}
}

// Validate checks the configuration for values no component can run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.StoreDriver) {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLiteDSN == "" {
			return fmt.Errorf("%w: sqlite_dsn must not be empty", ErrInvalidConfig)
		}
	case DriverBadger:
		if c.BadgerPath == "" && !c.BadgerInMemory {
			return fmt.Errorf("%w: badger_path must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	if c.MaxChainLength <= 0 {
		return fmt.Errorf("%w: max_chain_length must be positive", ErrInvalidConfig)
	}
	if c.MaxConflictRetries < 0 {
		return fmt.Errorf("%w: max_conflict_retries must not be negative", ErrInvalidConfig)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	if c.QueueSize < c.WorkerCount {
		return fmt.Errorf("%w: queue_size must be at least worker_count", ErrInvalidConfig)
	}
	if c.MetricsNamespace == "" {
		return fmt.Errorf("%w: metrics_namespace must not be empty", ErrInvalidConfig)
	}
	return nil
}
