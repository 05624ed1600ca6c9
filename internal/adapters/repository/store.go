// Package repository implements the record store over memory, SQLite and
// Badger.
//
// MemoryStore and SQLStore serialize scopes of one key with a per-key lock.
// BadgerStore runs scopes in optimistic transactions and re-runs them after
// a conflicting commit.
//
// Inside a scope a record is only ever inserted once and demoted once; no
// other write reaches a stored record.
package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/podium/internal/domain/history"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/metrics"
)

// Driver names a store implementation.
type Driver string

// Drivers.
const (
	DriverMemory Driver = "memory"
	DriverSQLite Driver = "sqlite"
	DriverBadger Driver = "badger"
)

// ParseDriver parses a driver name.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case DriverMemory, DriverSQLite, DriverBadger:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, s)
	}
}

var (
	_ history.Store = (*MemoryStore)(nil)
	_ history.Store = (*SQLStore)(nil)
	_ history.Store = (*BadgerStore)(nil)
)

// observe records the latency of op and counts it when it failed.
func observe(driver Driver, op string, start time.Time, err error) {
	metrics.RecordStoreLatency(string(driver), op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(string(driver), op)
	}
}

// checkRecord validates a record saved in the scope of key.
func checkRecord(key model.RecordKey, rec model.Record) error {
	if rec.Key() != key {
		return fmt.Errorf("%w: %s saved in scope of %s", ErrKeyMismatch, rec.Key(), key)
	}
	return rec.Validate()
}

// keyLocks hands out one lock per record key. A lock is created on first
// use and kept for the life of the store.
type keyLocks struct {
	mu    sync.Mutex
	locks map[model.RecordKey]chan struct{}
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[model.RecordKey]chan struct{})}
}

// lock blocks until key is free or ctx is done. The returned func releases it.
func (k *keyLocks) lock(ctx context.Context, key model.RecordKey) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = make(chan struct{}, 1)
		k.locks[key] = l
	}
	k.mu.Unlock()

	select {
	case l <- struct{}{}:
		return func() { <-l }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
