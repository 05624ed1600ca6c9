// Package service wires the record store, the history service and the
// ingest worker pool into one process-level component.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/podium/internal/adapters/mq/queue"
	workerpool "github.com/okian/podium/internal/adapters/mq/worker"
	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/internal/domain/history"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

const defaultShutdownTimeout = 30 * time.Second

// Service owns the store, the history service and the ingest pool.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   history.Store
	history *history.Service
	pool    *workerpool.Pool

	// Configuration
	driver             repository.Driver
	sqliteDSN          string
	badgerPath         string
	badgerInMemory     bool
	maxChainLength     int
	maxConflictRetries int
	workerCount        int
	queueSize          int
	shutdownTimeout    time.Duration

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingest workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the combined capacity of the ingest queues.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMemoryStore keeps records in process memory.
func WithMemoryStore() Option {
	return func(s *Service) { s.driver = repository.DriverMemory }
}

// WithSQLiteStore keeps records in the SQLite database at dsn.
func WithSQLiteStore(dsn string) Option {
	return func(s *Service) {
		s.driver = repository.DriverSQLite
		s.sqliteDSN = dsn
	}
}

// WithBadgerStore keeps records in a Badger directory, or in Badger's
// memory mode when inMemory is set.
func WithBadgerStore(path string, inMemory bool) Option {
	return func(s *Service) {
		s.driver = repository.DriverBadger
		s.badgerPath = path
		s.badgerInMemory = inMemory
	}
}

// WithMaxChainLength bounds history traversals.
func WithMaxChainLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxChainLength = n
		}
	}
}

// WithMaxConflictRetries bounds optimistic re-runs in the Badger store.
func WithMaxConflictRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxConflictRetries = n
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for queued submissions.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// FromConfig translates a loaded configuration into options.
func FromConfig(cfg *config.Config) ([]Option, error) {
	driver, err := repository.ParseDriver(cfg.StoreDriver)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithMaxChainLength(cfg.MaxChainLength),
		WithMaxConflictRetries(cfg.MaxConflictRetries),
	}
	switch driver {
	case repository.DriverSQLite:
		opts = append(opts, WithSQLiteStore(cfg.SQLiteDSN))
	case repository.DriverBadger:
		opts = append(opts, WithBadgerStore(cfg.BadgerPath, cfg.BadgerInMemory))
	default:
		opts = append(opts, WithMemoryStore())
	}
	return opts, nil
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		driver:             repository.DriverMemory,
		maxChainLength:     history.DefaultMaxChainLength,
		maxConflictRetries: -1,
		workerCount:        runtime.NumCPU() * 2,
		queueSize:          10_000,
		shutdownTimeout:    defaultShutdownTimeout,
		logger:             nil, // Will be replaced when service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store and starts the ingest workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting record service...", logger.String("driver", string(s.driver)))

	store, err := s.openStore(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("app", "open_store")
		return fmt.Errorf("open %s store: %w", s.driver, err)
	}
	s.store = store

	s.history = history.New(store,
		history.WithLogger(s.logger.Named("history")),
		history.WithMaxChainLength(s.maxChainLength),
	)

	s.pool = workerpool.NewPool(s.workerCount, s.queueSize, s.history,
		workerpool.WithPoolLogger(s.logger),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "record service started",
		logger.String("driver", string(s.driver)),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)

	return nil
}

func (s *Service) openStore(ctx context.Context) (history.Store, error) {
	opts := []repository.Option{repository.WithLogger(s.logger)}
	if s.maxConflictRetries >= 0 {
		opts = append(opts, repository.WithMaxConflictRetries(s.maxConflictRetries))
	}

	switch s.driver {
	case repository.DriverSQLite:
		return repository.OpenSQLStore(ctx, s.sqliteDSN, opts...)
	case repository.DriverBadger:
		return repository.OpenBadgerStore(ctx, repository.BadgerConfig{Path: s.badgerPath, InMemory: s.badgerInMemory}, opts...)
	case repository.DriverMemory:
		return repository.NewMemoryStore(ctx, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownDriver, s.driver)
	}
}

// Stop drains the ingest queues and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping record service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error(ctx, "failed to close store", logger.Error(err))
		}
	}

	s.history = nil
	s.started = false
	s.logger.Info(ctx, "record service stopped")
}

// History returns the history service, or nil before Start.
func (s *Service) History() *history.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history
}

// Submit applies one candidate synchronously.
func (s *Service) Submit(ctx context.Context, c model.Candidate) (model.Record, error) {
	h := s.History()
	if h == nil {
		return model.Record{}, ErrNotStarted
	}
	return h.SubmitCandidate(ctx, c)
}

// SubmitBatch queues the candidates through the worker pool and waits for
// every outcome. Candidates of one key are applied in slice order. Results
// are indexed like the input; a candidate that could not be queued carries
// the enqueue error.
func (s *Service) SubmitBatch(ctx context.Context, candidates []model.Candidate) ([]queue.Result, error) {
	s.mu.RLock()
	pool, started := s.pool, s.started
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}

	results := make([]queue.Result, len(candidates))
	done := make(chan queue.Result, len(candidates))
	queued := 0
	for i, c := range candidates {
		err := pool.EnqueueWait(ctx, queue.Submission{Seq: i, Candidate: c, Done: done})
		if err != nil {
			for j := i; j < len(candidates); j++ {
				results[j] = queue.Result{Seq: j, Err: err}
			}
			s.logger.Warn(ctx, "batch cut short", logger.Int("queued", queued), logger.Error(err))
			break
		}
		queued++
	}

	for ; queued > 0; queued-- {
		select {
		case res := <-done:
			results[res.Seq] = res
		case <-ctx.Done():
			return results, ctx.Err()
		}
	}

	return results, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"driver":      string(s.driver),
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}

	if s.started {
		queueLen := s.pool.Len(ctx)
		stats["queueLength"] = queueLen
		stats["processed"] = s.pool.Processed()
		stats["active"] = s.pool.Active()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)

		if current, err := s.history.CurrentRecords(ctx); err == nil {
			stats["currentRecords"] = len(current)
			metrics.UpdateCurrentRecords(len(current))
		} else {
			s.logger.Warn(ctx, "failed to count current records", logger.Error(err))
		}
	}

	return stats
}
