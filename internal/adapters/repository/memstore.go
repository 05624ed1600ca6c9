package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/podium/internal/domain/history"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// MemoryStore keeps records in maps keyed by id. Links are ids, never
// pointers; successors are served from a secondary index keyed by the
// previous record.
type MemoryStore struct {
	settings
	locks *keyLocks

	mu      sync.RWMutex
	byID    map[uuid.UUID]model.Record
	current map[model.RecordKey]uuid.UUID
	next    map[uuid.UUID][]uuid.UUID

	closed   atomic.Bool
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs an empty store. The metrics updater runs until
// ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		settings: newSettings(opts),
		locks:    newKeyLocks(),
		byID:     make(map[uuid.UUID]model.Record),
		current:  make(map[model.RecordKey]uuid.UUID),
		next:     make(map[uuid.UUID][]uuid.UUID),
		stopChan: make(chan struct{}),
	}
	s.log = s.log.Named("memory")
	if s.metricsUpdateInterval > 0 {
		s.startMetricsUpdater(ctx)
	}
	return s
}

// WithinKey runs fn with exclusive access to key. Writes are staged and
// applied together only when fn returns nil.
func (s *MemoryStore) WithinKey(ctx context.Context, key model.RecordKey, fn func(history.KeyTx) error) (err error) {
	start := time.Now()
	defer func() { observe(DriverMemory, "within_key", start, err) }()

	if s.closed.Load() {
		return ErrClosed
	}
	unlock, err := s.locks.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	tx := &memTx{s: s, key: key, staged: make(map[uuid.UUID]model.Record), fresh: make(map[uuid.UUID]bool)}
	if err := fn(tx); err != nil {
		return err
	}
	return s.apply(tx)
}

// apply publishes staged records. Callers hold the key lock; an id inserted
// meanwhile by a scope of another key fails the whole scope.
func (s *MemoryStore) apply(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range tx.fresh {
		if _, ok := s.byID[id]; ok {
			return fmt.Errorf("%w: %s", history.ErrDuplicateID, id)
		}
	}
	for _, id := range tx.order {
		rec := tx.staged[id]
		s.byID[id] = rec

		if rec.IsCurrent {
			s.current[tx.key] = id
		} else if cur, ok := s.current[tx.key]; ok && cur == id {
			delete(s.current, tx.key)
		}
		if tx.fresh[id] && rec.PreviousRecord.Valid {
			s.next[rec.PreviousRecord.UUID] = append(s.next[rec.PreviousRecord.UUID], id)
		}
	}
	return nil
}

// FindCurrent returns the current record of key.
func (s *MemoryStore) FindCurrent(ctx context.Context, key model.RecordKey) (model.Record, bool, error) {
	start := time.Now()
	defer observe(DriverMemory, "find_current", start, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.current[key]
	if !ok {
		return model.Record{}, false, nil
	}
	rec, ok := s.byID[id]
	return rec, ok, nil
}

// Get returns the record with the given id.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (model.Record, bool, error) {
	start := time.Now()
	defer observe(DriverMemory, "get", start, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	return rec, ok, nil
}

// FindByPrevious returns the records whose PreviousRecord is id.
func (s *MemoryStore) FindByPrevious(ctx context.Context, id uuid.UUID) ([]model.Record, error) {
	start := time.Now()
	defer observe(DriverMemory, "find_by_previous", start, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.next[id]
	out := make([]model.Record, 0, len(ids))
	for _, nid := range ids {
		if rec, ok := s.byID[nid]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListCurrent returns every current record in no particular order.
func (s *MemoryStore) ListCurrent(ctx context.Context) ([]model.Record, error) {
	start := time.Now()
	defer observe(DriverMemory, "list_current", start, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Record, 0, len(s.current))
	for _, id := range s.current {
		out = append(out, s.byID[id])
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close stops the metrics updater. Reads keep working; new scopes fail with
// ErrClosed.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// startMetricsUpdater starts a background goroutine that refreshes the
// current records gauge.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.mu.RLock()
				n := len(s.current)
				s.mu.RUnlock()
				metrics.UpdateCurrentRecords(n)
			}
		}
	}()
}

// memTx stages writes for one WithinKey scope.
type memTx struct {
	s      *MemoryStore
	key    model.RecordKey
	staged map[uuid.UUID]model.Record
	fresh  map[uuid.UUID]bool
	order  []uuid.UUID
}

// FindCurrent sees the scope's own staged writes first.
func (tx *memTx) FindCurrent(ctx context.Context) (model.Record, bool, error) {
	for i := len(tx.order) - 1; i >= 0; i-- {
		if rec := tx.staged[tx.order[i]]; rec.IsCurrent {
			return rec, true, nil
		}
	}
	rec, ok, err := tx.s.FindCurrent(ctx, tx.key)
	if err != nil || !ok {
		return rec, ok, err
	}
	if staged, ok := tx.staged[rec.ID]; ok && !staged.IsCurrent {
		return model.Record{}, false, nil
	}
	return rec, true, nil
}

func (tx *memTx) stage(rec model.Record) {
	if _, ok := tx.staged[rec.ID]; !ok {
		tx.order = append(tx.order, rec.ID)
	}
	tx.staged[rec.ID] = rec
}

func (tx *memTx) Insert(ctx context.Context, rec model.Record) error {
	if err := checkRecord(tx.key, rec); err != nil {
		return err
	}
	_, staged := tx.staged[rec.ID]
	_, stored, _ := tx.s.Get(ctx, rec.ID)
	if staged || stored {
		return fmt.Errorf("%w: %s", history.ErrDuplicateID, rec.ID)
	}
	if rec.IsCurrent {
		_, ok, err := tx.FindCurrent(ctx)
		if err != nil {
			return err
		}
		if ok {
			return ErrDuplicateCurrent
		}
	}
	tx.stage(rec)
	tx.fresh[rec.ID] = true
	tx.s.log.Debug(ctx, "staged record",
		logger.String("key", tx.key.String()),
		logger.Stringer("id", rec.ID),
		logger.Bool("current", rec.IsCurrent))
	return nil
}

func (tx *memTx) Demote(ctx context.Context, id uuid.UUID, at time.Time) error {
	cur, ok, err := tx.FindCurrent(ctx)
	if err != nil {
		return err
	}
	if !ok || cur.ID != id {
		return fmt.Errorf("%w: %s in %s", ErrNotCurrent, id, tx.key)
	}
	cur.IsCurrent = false
	cur.UpdatedAt = at
	tx.stage(cur)
	tx.s.log.Debug(ctx, "staged demotion",
		logger.String("key", tx.key.String()),
		logger.Stringer("id", id))
	return nil
}
