package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/podium/internal/domain/model"
)

// KeyTx is the view of one record key inside a Store.WithinKey scope.
type KeyTx interface {
	// FindCurrent returns the current record of the scope's key.
	FindCurrent(ctx context.Context) (model.Record, bool, error)
	// Insert adds a new record of the scope's key. It fails with
	// ErrDuplicateID when a record with the same id is already stored.
	Insert(ctx context.Context, rec model.Record) error
	// Demote marks the current record id as superseded at the given time.
	// It is the only change a stored record ever receives.
	Demote(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Writes made through a KeyTx become visible to other callers only when the
// scope returns nil.

// Store persists records. Implementations must linearize WithinKey scopes
// for the same key, either by holding a per-key lock for the whole scope or
// by re-running fn after an optimistic conflict. Scopes for different keys
// must not block each other.
type Store interface {
	WithinKey(ctx context.Context, key model.RecordKey, fn func(tx KeyTx) error) error
	FindCurrent(ctx context.Context, key model.RecordKey) (model.Record, bool, error)
	Get(ctx context.Context, id uuid.UUID) (model.Record, bool, error)
	FindByPrevious(ctx context.Context, id uuid.UUID) ([]model.Record, error)
	ListCurrent(ctx context.Context) ([]model.Record, error)
	Close() error
}
