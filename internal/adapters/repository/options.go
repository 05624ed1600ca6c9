package repository

import (
	"time"

	"github.com/okian/podium/pkg/logger"
)

// Defaults shared by the stores.
const (
	defaultMetricsUpdateInterval = 5 * time.Second
	defaultMaxConflictRetries    = 16
	defaultGCInterval            = 5 * time.Minute
	defaultGCDiscardRatio        = 0.5
	defaultSQLMaxOpenConns       = 8
	defaultSQLBusyTimeout        = 5 * time.Second
)

type settings struct {
	log                   logger.Logger
	metricsUpdateInterval time.Duration
	maxConflictRetries    int
	gcInterval            time.Duration
	syncWrites            bool
	maxOpenConns          int
	busyTimeout           time.Duration
}

func newSettings(opts []Option) settings {
	s := settings{
		log:                   logger.Nop(),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		maxConflictRetries:    defaultMaxConflictRetries,
		gcInterval:            defaultGCInterval,
		syncWrites:            true,
		maxOpenConns:          defaultSQLMaxOpenConns,
		busyTimeout:           defaultSQLBusyTimeout,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option applies a configuration option to a store.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background gauge updates.
// Zero disables the updater.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *settings) {
		if interval >= 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithMaxConflictRetries bounds how often a store re-runs a scope after a
// conflicting Badger commit or a busy SQLite database. Zero means a single
// attempt.
func WithMaxConflictRetries(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.maxConflictRetries = n
		}
	}
}

// WithGCInterval sets how often the Badger value log is collected. Zero
// disables collection.
func WithGCInterval(interval time.Duration) Option {
	return func(s *settings) {
		if interval >= 0 {
			s.gcInterval = interval
		}
	}
}

// WithSyncWrites toggles synchronous Badger writes.
func WithSyncWrites(sync bool) Option {
	return func(s *settings) { s.syncWrites = sync }
}

// WithMaxOpenConns sets the SQL connection pool size. Every open scope
// holds one connection. In-memory databases always use one.
func WithMaxOpenConns(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithBusyTimeout sets how long a SQLite connection waits for the write
// lock before failing with a busy error.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}
