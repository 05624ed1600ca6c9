package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/okian/podium/internal/domain/history"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// Key layout:
//
//	rec/<id>            record JSON
//	cur/<key>           id of the current record of key
//	prev/<previd>/<id>  empty; successor index
const (
	recPrefix  = "rec/"
	curPrefix  = "cur/"
	prevPrefix = "prev/"
)

func recKey(id uuid.UUID) []byte { return []byte(recPrefix + id.String()) }
func curKey(key model.RecordKey) []byte { return []byte(curPrefix + key.String()) }
func prevScan(prev uuid.UUID) []byte { return []byte(prevPrefix + prev.String() + "/") }
func prevKey(prev, id uuid.UUID) []byte { return append(prevScan(prev), id.String()...) }

// BadgerConfig locates the Badger database.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
}

// BadgerStore persists records in Badger. Scopes are optimistic
// transactions re-run after a conflicting commit.
type BadgerStore struct {
	settings
	db     *badger.DB
	closed atomic.Bool

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// badgerLogger adapts logger.Logger to Badger's logger.
type badgerLogger struct {
	log logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}

// OpenBadgerStore opens the database described by cfg.
func OpenBadgerStore(ctx context.Context, cfg BadgerConfig, opts ...Option) (*BadgerStore, error) {
	s := &BadgerStore{settings: newSettings(opts), stopChan: make(chan struct{})}
	s.log = s.log.Named("badger")

	var bopts badger.Options
	if cfg.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required for a persistent store")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		bopts = badger.DefaultOptions(cfg.Path)
	}
	bopts = bopts.
		WithSyncWrites(s.syncWrites && !cfg.InMemory).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: s.log})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s.db = db

	if s.gcInterval > 0 && !cfg.InMemory {
		s.startGC(ctx)
	}
	if s.metricsUpdateInterval > 0 {
		s.startMetricsUpdater(ctx)
	}
	s.log.Info(ctx, "badger store ready",
		logger.String("path", cfg.Path),
		logger.Bool("in_memory", cfg.InMemory))
	return s, nil
}

// WithinKey runs fn in a read-write transaction. A commit that conflicts
// with another writer re-runs fn up to the configured retry limit, after
// which ErrContention is returned.
func (s *BadgerStore) WithinKey(ctx context.Context, key model.RecordKey, fn func(history.KeyTx) error) (err error) {
	start := time.Now()
	defer func() { observe(DriverBadger, "within_key", start, err) }()

	if s.closed.Load() {
		return ErrClosed
	}
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			return fn(&badgerTx{txn: txn, key: key, log: s.log})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}

		metrics.RecordStoreConflict(string(DriverBadger))
		if attempt >= s.maxConflictRetries {
			s.log.Warn(ctx, "giving up after conflicting commits",
				logger.String("key", key.String()),
				logger.Int("attempts", attempt+1))
			return fmt.Errorf("%w: %s", ErrContention, key)
		}
		s.log.Debug(ctx, "commit conflict, retrying",
			logger.String("key", key.String()),
			logger.Int("attempt", attempt+1))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Millisecond):
		}
	}
}

// FindCurrent returns the current record of key.
func (s *BadgerStore) FindCurrent(ctx context.Context, key model.RecordKey) (rec model.Record, ok bool, err error) {
	start := time.Now()
	defer func() { observe(DriverBadger, "find_current", start, err) }()

	err = s.db.View(func(txn *badger.Txn) error {
		rec, ok, err = findCurrentTxn(txn, key)
		return err
	})
	return rec, ok, err
}

// Get returns the record with the given id.
func (s *BadgerStore) Get(ctx context.Context, id uuid.UUID) (rec model.Record, ok bool, err error) {
	start := time.Now()
	defer func() { observe(DriverBadger, "get", start, err) }()

	err = s.db.View(func(txn *badger.Txn) error {
		rec, ok, err = getTxn(txn, id)
		return err
	})
	return rec, ok, err
}

// FindByPrevious returns the records whose PreviousRecord is id.
func (s *BadgerStore) FindByPrevious(ctx context.Context, id uuid.UUID) (recs []model.Record, err error) {
	start := time.Now()
	defer func() { observe(DriverBadger, "find_by_previous", start, err) }()

	prefix := prevScan(id)
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		var ids []uuid.UUID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			nid, err := uuid.ParseBytes(it.Item().Key()[len(prefix):])
			if err != nil {
				return fmt.Errorf("successor index: %w", err)
			}
			ids = append(ids, nid)
		}
		for _, nid := range ids {
			rec, ok, err := getTxn(txn, nid)
			if err != nil {
				return err
			}
			if ok {
				recs = append(recs, rec)
			}
		}
		return nil
	})
	return recs, err
}

// ListCurrent returns every current record.
func (s *BadgerStore) ListCurrent(ctx context.Context) (recs []model.Record, err error) {
	start := time.Now()
	defer func() { observe(DriverBadger, "list_current", start, err) }()

	prefix := []byte(curPrefix)
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		var ids []uuid.UUID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id uuid.UUID
			err := it.Item().Value(func(v []byte) error {
				var err error
				id, err = uuid.ParseBytes(v)
				return err
			})
			if err != nil {
				return fmt.Errorf("current index: %w", err)
			}
			ids = append(ids, id)
		}
		for _, id := range ids {
			rec, ok, err := getTxn(txn, id)
			if err != nil {
				return err
			}
			if ok {
				recs = append(recs, rec)
			}
		}
		return nil
	})
	return recs, err
}

// Close stops the background goroutines and closes the database.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return s.db.Close()
}

// startGC runs value log garbage collection on an interval.
func (s *BadgerStore) startGC(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.gcInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				err := s.db.RunValueLogGC(defaultGCDiscardRatio)
				if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
					s.log.Warn(ctx, "value log gc failed", logger.Error(err))
				}
			}
		}
	}()
}

// startMetricsUpdater refreshes the current records gauge on an interval.
func (s *BadgerStore) startMetricsUpdater(ctx context.Context) {
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
				n, err := s.countCurrent()
				if err != nil {
					s.log.Debug(ctx, "count current records", logger.Error(err))
					continue
				}
				metrics.UpdateCurrentRecords(n)
			}
		}
	}()
}

func (s *BadgerStore) countCurrent() (int, error) {
	n := 0
	prefix := []byte(curPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func getTxn(txn *badger.Txn, id uuid.UUID) (model.Record, bool, error) {
	item, err := txn.Get(recKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.Record{}, false, nil
	}
	if err != nil {
		return model.Record{}, false, err
	}
	var rec model.Record
	if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
		return model.Record{}, false, fmt.Errorf("decode record %s: %w", id, err)
	}
	return rec, true, nil
}

func currentIDTxn(txn *badger.Txn, key model.RecordKey) (uuid.UUID, bool, error) {
	item, err := txn.Get(curKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	var id uuid.UUID
	err = item.Value(func(v []byte) error {
		var err error
		id, err = uuid.ParseBytes(v)
		return err
	})
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("current index of %s: %w", key, err)
	}
	return id, true, nil
}

func findCurrentTxn(txn *badger.Txn, key model.RecordKey) (model.Record, bool, error) {
	id, ok, err := currentIDTxn(txn, key)
	if err != nil || !ok {
		return model.Record{}, false, err
	}
	return getTxn(txn, id)
}

type badgerTx struct {
	txn *badger.Txn
	key model.RecordKey
	log logger.Logger
}

func (tx *badgerTx) FindCurrent(ctx context.Context) (model.Record, bool, error) {
	return findCurrentTxn(tx.txn, tx.key)
}

func (tx *badgerTx) Insert(ctx context.Context, rec model.Record) error {
	if err := checkRecord(tx.key, rec); err != nil {
		return err
	}
	if _, exists, err := getTxn(tx.txn, rec.ID); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: %s", history.ErrDuplicateID, rec.ID)
	}

	if rec.IsCurrent {
		_, hasCur, err := currentIDTxn(tx.txn, tx.key)
		if err != nil {
			return err
		}
		if hasCur {
			return ErrDuplicateCurrent
		}
		if err := tx.txn.Set(curKey(tx.key), []byte(rec.ID.String())); err != nil {
			return err
		}
	}
	if rec.PreviousRecord.Valid {
		if err := tx.txn.Set(prevKey(rec.PreviousRecord.UUID, rec.ID), []byte{}); err != nil {
			return err
		}
	}
	if err := setRecord(tx.txn, rec); err != nil {
		return err
	}
	tx.log.Debug(ctx, "inserted record",
		logger.String("key", tx.key.String()),
		logger.Stringer("id", rec.ID),
		logger.Bool("current", rec.IsCurrent))
	return nil
}

func (tx *badgerTx) Demote(ctx context.Context, id uuid.UUID, at time.Time) error {
	curID, hasCur, err := currentIDTxn(tx.txn, tx.key)
	if err != nil {
		return err
	}
	if !hasCur || curID != id {
		return fmt.Errorf("%w: %s in %s", ErrNotCurrent, id, tx.key)
	}
	rec, ok, err := getTxn(tx.txn, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("current index of %s names missing record %s", tx.key, id)
	}

	rec.IsCurrent = false
	rec.UpdatedAt = at
	if err := tx.txn.Delete(curKey(tx.key)); err != nil {
		return err
	}
	if err := setRecord(tx.txn, rec); err != nil {
		return err
	}
	tx.log.Debug(ctx, "demoted record",
		logger.String("key", tx.key.String()),
		logger.Stringer("id", id))
	return nil
}

func setRecord(txn *badger.Txn, rec model.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	return txn.Set(recKey(rec.ID), data)
}
