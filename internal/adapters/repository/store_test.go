package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/okian/podium/internal/domain/history"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/performance"
)

var (
	testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	key100m = model.RecordKey{DisciplineID: "100m", Gender: model.Men, Category: model.Senior}
	key200m = model.RecordKey{DisciplineID: "200m", Gender: model.Women, Category: model.U20}
)

type storeFactory func(t *testing.T) history.Store

func openMemory(t *testing.T) history.Store {
	s := NewMemoryStore(context.Background(), WithMetricsUpdateInterval(0))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func openSQLite(t *testing.T) history.Store {
	dsn := "file:" + filepath.Join(t.TempDir(), "records.db")
	s, err := OpenSQLStore(context.Background(), dsn, WithMaxConflictRetries(64))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func openBadger(t *testing.T) history.Store {
	s, err := OpenBadgerStore(context.Background(), BadgerConfig{InMemory: true},
		WithMetricsUpdateInterval(0), WithMaxConflictRetries(256))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, open storeFactory)) {
	t.Helper()
	for name, open := range map[string]storeFactory{
		"memory": openMemory,
		"sqlite": openSQLite,
		"badger": openBadger,
	} {
		t.Run(name, func(t *testing.T) { fn(t, open) })
	}
}

func newRecord(key model.RecordKey, micros uint64, day int) model.Record {
	return model.Record{
		ID:           uuid.New(),
		DisciplineID: key.DisciplineID,
		Kind:         performance.Run,
		AthleteID:    "ath-1",
		LocationID:   "loc-1",
		AchievedOn:   time.Date(2020, time.January, day, 0, 0, 0, 0, time.UTC),
		Performance:  performance.Duration(micros),
		Gender:       key.Gender,
		Category:     key.Category,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
}

func insert(t *testing.T, s history.Store, recs ...model.Record) {
	t.Helper()
	err := s.WithinKey(context.Background(), recs[0].Key(), func(tx history.KeyTx) error {
		for _, rec := range recs {
			if err := tx.Insert(context.Background(), rec); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// supersede demotes the current record cur and inserts next in one scope.
func supersede(t *testing.T, s history.Store, cur uuid.UUID, next model.Record, at time.Time) {
	t.Helper()
	err := s.WithinKey(context.Background(), next.Key(), func(tx history.KeyTx) error {
		if err := tx.Demote(context.Background(), cur, at); err != nil {
			return err
		}
		return tx.Insert(context.Background(), next)
	})
	require.NoError(t, err)
}

func assertSameRecord(t *testing.T, want, got model.Record) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Key(), got.Key())
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.AthleteID, got.AthleteID)
	assert.Equal(t, want.LocationID, got.LocationID)
	assert.True(t, want.AchievedOn.Equal(got.AchievedOn), "achieved %v != %v", want.AchievedOn, got.AchievedOn)
	assert.True(t, want.Performance.Equal(got.Performance), "performance %v != %v", want.Performance, got.Performance)
	assert.Equal(t, want.IsCurrent, got.IsCurrent)
	assert.Equal(t, want.PreviousRecord, got.PreviousRecord)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
}

func TestStore_GetMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)

		_, ok, err := s.Get(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = s.FindCurrent(ctx, key100m)
		require.NoError(t, err)
		assert.False(t, ok)

		next, err := s.FindByPrevious(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, next)

		all, err := s.ListCurrent(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestStore_FirstRecord(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)

		rec := newRecord(key100m, 9_580_000, 1)
		rec.IsCurrent = true
		insert(t, s, rec)

		got, ok, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assertSameRecord(t, rec, got)

		cur, ok, err := s.FindCurrent(ctx, key100m)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, rec.ID, cur.ID)

		_, ok, err = s.FindCurrent(ctx, key200m)
		require.NoError(t, err)
		assert.False(t, ok)

		all, err := s.ListCurrent(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, rec.ID, all[0].ID)
	})
}

func TestStore_DistanceRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)

		key := model.RecordKey{DisciplineID: "lj", Gender: model.Women, Category: model.Master}
		rec := newRecord(key, 0, 3)
		rec.Kind = performance.Jump
		perf, err := performance.Distance(7.52)
		require.NoError(t, err)
		rec.Performance = perf
		rec.IsCurrent = true
		insert(t, s, rec)

		got, ok, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assertSameRecord(t, rec, got)
		assert.Equal(t, 7.52, got.Performance.Meters())
	})
}

func TestStore_SupersedeLinksAndDemotes(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)

		first := newRecord(key100m, 9_690_000, 1)
		first.IsCurrent = true
		insert(t, s, first)

		demotedAt := testNow.Add(time.Hour)
		second := newRecord(key100m, 9_580_000, 2)
		second.IsCurrent = true
		second.PreviousRecord = uuid.NullUUID{UUID: first.ID, Valid: true}
		supersede(t, s, first.ID, second, demotedAt)

		cur, ok, err := s.FindCurrent(ctx, key100m)
		require.NoError(t, err)
		require.True(t, ok)
		assertSameRecord(t, second, cur)

		old, ok, err := s.Get(ctx, first.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.False(t, old.IsCurrent)
		assert.True(t, old.UpdatedAt.Equal(demotedAt))
		assert.True(t, old.Performance.Equal(first.Performance))
		assert.True(t, old.CreatedAt.Equal(first.CreatedAt))

		next, err := s.FindByPrevious(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, next, 1)
		assert.Equal(t, second.ID, next[0].ID)

		all, err := s.ListCurrent(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, second.ID, all[0].ID)
	})
}

func TestStore_ScopeSeesOwnWrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)

		first := newRecord(key100m, 9_690_000, 1)
		first.IsCurrent = true
		insert(t, s, first)

		err := s.WithinKey(ctx, key100m, func(tx history.KeyTx) error {
			require.NoError(t, tx.Demote(ctx, first.ID, testNow))

			_, ok, err := tx.FindCurrent(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			second := newRecord(key100m, 9_580_000, 2)
			second.IsCurrent = true
			require.NoError(t, tx.Insert(ctx, second))

			cur, ok, err := tx.FindCurrent(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, second.ID, cur.ID)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestStore_FailedScopeLeavesNoTrace(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)

		first := newRecord(key100m, 9_690_000, 1)
		first.IsCurrent = true
		insert(t, s, first)

		boom := errors.New("boom")
		second := newRecord(key100m, 9_580_000, 2)
		err := s.WithinKey(ctx, key100m, func(tx history.KeyTx) error {
			if err := tx.Demote(ctx, first.ID, testNow); err != nil {
				return err
			}
			second.IsCurrent = true
			second.PreviousRecord = uuid.NullUUID{UUID: first.ID, Valid: true}
			if err := tx.Insert(ctx, second); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, ok, err := s.Get(ctx, second.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		cur, ok, err := s.FindCurrent(ctx, key100m)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, first.ID, cur.ID)
		assert.True(t, cur.IsCurrent)

		next, err := s.FindByPrevious(ctx, first.ID)
		require.NoError(t, err)
		assert.Empty(t, next)
	})
}

func TestStore_RejectsForeignKey(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)

		err := s.WithinKey(ctx, key100m, func(tx history.KeyTx) error {
			return tx.Insert(ctx, newRecord(key200m, 22_000_000, 1))
		})
		require.ErrorIs(t, err, ErrKeyMismatch)
	})
}

func TestStore_RejectsSecondCurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)

		first := newRecord(key100m, 9_690_000, 1)
		first.IsCurrent = true
		insert(t, s, first)

		err := s.WithinKey(ctx, key100m, func(tx history.KeyTx) error {
			second := newRecord(key100m, 9_580_000, 2)
			second.IsCurrent = true
			return tx.Insert(ctx, second)
		})
		require.ErrorIs(t, err, ErrDuplicateCurrent)

		cur, ok, err := s.FindCurrent(ctx, key100m)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, first.ID, cur.ID)
	})
}

func TestStore_RejectsDuplicateID(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)

		first := newRecord(key100m, 9_690_000, 1)
		first.IsCurrent = true
		insert(t, s, first)
		second := newRecord(key100m, 9_580_000, 2)
		second.IsCurrent = true
		second.PreviousRecord = uuid.NullUUID{UUID: first.ID, Valid: true}
		supersede(t, s, first.ID, second, testNow)

		// the current record again, faster and linked to itself
		again := second
		again.Performance = performance.Duration(9_500_000)
		again.PreviousRecord = uuid.NullUUID{UUID: second.ID, Valid: true}
		err := s.WithinKey(ctx, key100m, func(tx history.KeyTx) error {
			if err := tx.Demote(ctx, second.ID, testNow.Add(time.Hour)); err != nil {
				return err
			}
			return tx.Insert(ctx, again)
		})
		require.ErrorIs(t, err, history.ErrDuplicateID)

		// a superseded record reused as a new one
		reused := first
		reused.Performance = performance.Duration(9_000_000)
		err = s.WithinKey(ctx, key100m, func(tx history.KeyTx) error {
			return tx.Insert(ctx, reused)
		})
		require.ErrorIs(t, err, history.ErrDuplicateID)

		cur, ok, err := s.FindCurrent(ctx, key100m)
		require.NoError(t, err)
		require.True(t, ok)
		assertSameRecord(t, second, cur)

		old, ok, err := s.Get(ctx, first.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, old.Performance.Equal(first.Performance))
		assert.False(t, old.IsCurrent)

		next, err := s.FindByPrevious(ctx, second.ID)
		require.NoError(t, err)
		assert.Empty(t, next)
	})
}

func TestStore_DemoteRequiresCurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)

		first := newRecord(key100m, 9_690_000, 1)
		first.IsCurrent = true
		insert(t, s, first)
		second := newRecord(key100m, 9_580_000, 2)
		second.IsCurrent = true
		second.PreviousRecord = uuid.NullUUID{UUID: first.ID, Valid: true}
		supersede(t, s, first.ID, second, testNow)

		for _, id := range []uuid.UUID{first.ID, uuid.New()} {
			err := s.WithinKey(ctx, key100m, func(tx history.KeyTx) error {
				return tx.Demote(ctx, id, testNow)
			})
			require.ErrorIs(t, err, ErrNotCurrent)
		}

		err := s.WithinKey(ctx, key200m, func(tx history.KeyTx) error {
			return tx.Demote(ctx, second.ID, testNow)
		})
		require.ErrorIs(t, err, ErrNotCurrent)

		cur, ok, err := s.FindCurrent(ctx, key100m)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, second.ID, cur.ID)
	})
}

func TestStore_ClosedRejectsScopes(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		s := open(t)
		require.NoError(t, s.Close())

		err := s.WithinKey(context.Background(), key100m, func(history.KeyTx) error { return nil })
		require.ErrorIs(t, err, ErrClosed)
	})
}

func TestStore_ConcurrentSubmissionsLinearize(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)
		svc := history.New(s, history.WithClock(func() time.Time { return testNow }))

		const n = 24
		var accepted atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < n; i++ {
			rec := newRecord(key100m, uint64(10_000_000-i*10_000), 1)
			g.Go(func() error {
				_, err := svc.Submit(gctx, rec)
				switch {
				case err == nil:
					accepted.Add(1)
					return nil
				case history.Classify(err) == history.OutcomeRejected:
					return nil
				default:
					return err
				}
			})
		}
		require.NoError(t, g.Wait())

		cur, err := svc.Current(ctx, key100m)
		require.NoError(t, err)
		assert.Equal(t, uint64(10_000_000-(n-1)*10_000), cur.Performance.Micros())

		chain, err := svc.HistoryOf(ctx, cur.ID)
		require.NoError(t, err)
		assert.Len(t, chain, int(accepted.Load()))
		for i := 1; i < len(chain); i++ {
			assert.True(t, chain[i-1].Performance.IsBetterThan(chain[i].Performance, performance.Run))
			assert.False(t, chain[i].IsCurrent)
		}

		all, err := s.ListCurrent(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestStore_KeysAreIndependent(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)
		svc := history.New(s)

		keys := []model.RecordKey{
			key100m,
			key200m,
			{DisciplineID: "400m", Gender: model.Men, Category: model.U18},
			{DisciplineID: "800m", Gender: model.Women, Category: model.Senior},
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, key := range keys {
			for i := 0; i < 5; i++ {
				rec := newRecord(key, uint64(60_000_000-i*100_000), 1+i)
				g.Go(func() error {
					_, err := svc.Submit(gctx, rec)
					if err != nil && history.Classify(err) != history.OutcomeRejected {
						return err
					}
					return nil
				})
			}
		}
		require.NoError(t, g.Wait())

		all, err := svc.CurrentRecords(ctx)
		require.NoError(t, err)
		require.Len(t, all, len(keys))
		for _, rec := range all {
			assert.Equal(t, uint64(60_000_000-4*100_000), rec.Performance.Micros(), rec.Key().String())
		}
	})
}

func TestStore_OpenScopeDoesNotBlockOtherKeys(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeFactory) {
		ctx := context.Background()
		s := open(t)

		held := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		slow := newRecord(key100m, 9_580_000, 1)
		slow.IsCurrent = true
		done := make(chan error, 1)
		go func() {
			done <- s.WithinKey(ctx, key100m, func(tx history.KeyTx) error {
				if _, _, err := tx.FindCurrent(ctx); err != nil {
					return err
				}
				once.Do(func() { close(held) })
				<-release
				return tx.Insert(ctx, slow)
			})
		}()
		<-held

		fast := newRecord(key200m, 22_000_000, 1)
		fast.IsCurrent = true
		bctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		err := s.WithinKey(bctx, key200m, func(tx history.KeyTx) error {
			if _, _, err := tx.FindCurrent(bctx); err != nil {
				return err
			}
			return tx.Insert(bctx, fast)
		})
		require.NoError(t, err)

		close(release)
		require.NoError(t, <-done)

		all, err := s.ListCurrent(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestParseDriver(t *testing.T) {
	for in, want := range map[string]Driver{"memory": DriverMemory, " SQLite ": DriverSQLite, "badger": DriverBadger} {
		got, err := ParseDriver(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDriver("postgres")
	require.ErrorIs(t, err, ErrUnknownDriver)
}
