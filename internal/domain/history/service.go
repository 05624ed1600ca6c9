// Package history is the only writer of record chains.
//
// Submit retires the current record of a key and links the new one to it;
// HistoryOf and SuccessorsOf walk the chain in either direction. The
// IsCurrent flag and PreviousRecord link are never set anywhere else.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/performance"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// Service applies submissions and resolves chains against a Store.
type Service struct {
	store    Store
	log      logger.Logger
	maxChain int
	now      func() time.Time
}

// New creates a Service over store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		log:      logger.Nop(),
		maxChain: DefaultMaxChainLength,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitCandidate builds a record from c and submits it.
func (s *Service) SubmitCandidate(ctx context.Context, c model.Candidate) (model.Record, error) {
	rec, err := model.NewRecord(c, s.now())
	if err != nil {
		metrics.RecordSubmission(Classify(err).String())
		return model.Record{}, err
	}
	return s.Submit(ctx, rec)
}

// Submit makes rec the current record of its key if it strictly improves on
// the existing one, demoting that one into history. A rejection is returned
// as *RejectedError and leaves the store untouched.
//
// The returned record is the stored copy, with IsCurrent set and
// PreviousRecord resolved.
func (s *Service) Submit(ctx context.Context, rec model.Record) (model.Record, error) {
	start := time.Now()
	stored, superseded, err := s.submit(ctx, rec)
	metrics.RecordSubmitLatency(float64(time.Since(start).Microseconds()) / 1000)

	outcome := Classify(err)
	metrics.RecordSubmission(outcome.String())
	key := rec.Key().String()
	switch outcome {
	case OutcomeAccepted:
		if superseded {
			metrics.RecordSupersession()
			s.log.Info(ctx, "record superseded",
				logger.String("key", key),
				logger.Stringer("id", stored.ID),
				logger.Stringer("previous", stored.PreviousRecord.UUID),
				logger.String("performance", stored.Performance.Canonical()))
		} else {
			metrics.IncCurrentRecords()
			s.log.Info(ctx, "first record for key",
				logger.String("key", key),
				logger.Stringer("id", stored.ID),
				logger.String("performance", stored.Performance.Canonical()))
		}
	case OutcomeRejected:
		s.log.Debug(ctx, "submission rejected", logger.String("key", key), logger.Error(err))
	case OutcomeInvalidInput:
		s.log.Debug(ctx, "submission invalid", logger.String("key", key), logger.Error(err))
	default:
		metrics.RecordErrorByComponent("history", "submit")
		s.log.Error(ctx, "submission failed", logger.String("key", key), logger.Error(err))
	}
	return stored, err
}

func (s *Service) submit(ctx context.Context, rec model.Record) (model.Record, bool, error) {
	if !rec.Kind.Valid() {
		return model.Record{}, false, fmt.Errorf("%w: %d for discipline %q",
			performance.ErrUnknownKind, uint8(rec.Kind), rec.DisciplineID)
	}
	if !rec.Performance.Matches(rec.Kind) {
		return model.Record{}, false, fmt.Errorf("%w: %s performance for %s discipline %q",
			ErrUnitMismatch, rec.Performance.Unit(), rec.Kind, rec.DisciplineID)
	}
	if err := rec.Validate(); err != nil {
		return model.Record{}, false, err
	}

	var (
		stored     model.Record
		superseded bool
	)
	// fn may run more than once under an optimistic store, so it starts
	// from rec every time and only publishes results on success.
	err := s.store.WithinKey(ctx, rec.Key(), func(tx KeyTx) error {
		cand := rec
		cur, found, err := tx.FindCurrent(ctx)
		if err != nil {
			return fmt.Errorf("find current %s: %w", rec.Key(), err)
		}

		now := s.now().UTC()
		if found {
			if cur.Kind != cand.Kind {
				return fmt.Errorf("%w: %s has %s records, got %s", ErrUnitMismatch, rec.Key(), cur.Kind, cand.Kind)
			}
			if !cand.Performance.IsBetterThan(cur.Performance, cand.Kind) {
				return &RejectedError{Reason: ReasonNotAnImprovement, Candidate: cand, Current: cur}
			}
			if cand.AchievedOn.Before(cur.AchievedOn) {
				return &RejectedError{Reason: ReasonPredatesCurrent, Candidate: cand, Current: cur}
			}

			if err := tx.Demote(ctx, cur.ID, now); err != nil {
				return fmt.Errorf("demote %s: %w", cur.ID, err)
			}
			cand.PreviousRecord = uuid.NullUUID{UUID: cur.ID, Valid: true}
		} else {
			cand.PreviousRecord = uuid.NullUUID{}
		}

		cand.IsCurrent = true
		if cand.CreatedAt.IsZero() {
			cand.CreatedAt = now
		}
		cand.UpdatedAt = now
		if err := tx.Insert(ctx, cand); err != nil {
			return fmt.Errorf("insert %s: %w", cand.ID, err)
		}
		stored, superseded = cand, found
		return nil
	})
	if err != nil {
		return model.Record{}, false, err
	}
	return stored, superseded, nil
}

// Get returns the record with the given id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Record, error) {
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	if !ok {
		return model.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// HistoryOf returns the record with the given id followed by every record
// it superseded, most recent first.
//
// The walk visits each id at most once and at most MaxChainLength records.
// A repeated id fails with ErrCycleDetected, a missing or foreign ancestor
// with ErrBrokenChain; both come wrapped in *HistoryError.
func (s *Service) HistoryOf(ctx context.Context, id uuid.UUID) ([]model.Record, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	key := rec.Key()
	out := []model.Record{rec}
	visited := map[uuid.UUID]struct{}{rec.ID: {}}
	fail := func(at uuid.UUID, cause error) ([]model.Record, error) {
		herr := &HistoryError{Start: id, At: at, Visited: len(out), Err: cause}
		metrics.RecordErrorByComponent("history", "traversal")
		s.log.Error(ctx, "history walk aborted",
			logger.Stringer("start", id),
			logger.Stringer("at", at),
			logger.Int("visited", len(out)),
			logger.Error(cause))
		return nil, herr
	}

	for cur := rec; cur.PreviousRecord.Valid; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prevID := cur.PreviousRecord.UUID
		if _, seen := visited[prevID]; seen {
			metrics.RecordCycleDetected()
			return fail(prevID, ErrCycleDetected)
		}
		if len(out) >= s.maxChain {
			return fail(prevID, ErrChainTooLong)
		}

		prev, ok, err := s.store.Get(ctx, prevID)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", prevID, err)
		}
		if !ok {
			metrics.RecordBrokenChain()
			return fail(prevID, fmt.Errorf("%w: ancestor missing", ErrBrokenChain))
		}
		if prev.Key() != key {
			metrics.RecordBrokenChain()
			return fail(prevID, fmt.Errorf("%w: ancestor belongs to %s", ErrBrokenChain, prev.Key()))
		}

		visited[prevID] = struct{}{}
		out = append(out, prev)
		cur = prev
	}

	metrics.RecordTraversalLength(len(out))
	return out, nil
}

// SuccessorsOf returns the records that superseded the given one. A
// correctly maintained chain has at most one; more are reported but still
// returned, oldest first.
func (s *Service) SuccessorsOf(ctx context.Context, id uuid.UUID) ([]model.Record, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	next, err := s.store.FindByPrevious(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find successors of %s: %w", id, err)
	}
	if len(next) > 1 {
		metrics.RecordExtraSuccessors()
		s.log.Warn(ctx, "record has more than one successor",
			logger.Stringer("id", id),
			logger.Int("successors", len(next)))
	}
	sort.SliceStable(next, func(i, j int) bool {
		if !next[i].AchievedOn.Equal(next[j].AchievedOn) {
			return next[i].AchievedOn.Before(next[j].AchievedOn)
		}
		return next[i].CreatedAt.Before(next[j].CreatedAt)
	})
	return next, nil
}

// Current returns the current record of key.
func (s *Service) Current(ctx context.Context, key model.RecordKey) (model.Record, error) {
	if err := key.Validate(); err != nil {
		return model.Record{}, err
	}
	rec, ok, err := s.store.FindCurrent(ctx, key)
	if err != nil {
		return model.Record{}, fmt.Errorf("find current %s: %w", key, err)
	}
	if !ok {
		return model.Record{}, fmt.Errorf("%w: no current record for %s", ErrNotFound, key)
	}
	return rec, nil
}

// Progression returns the full chain of key, current record first.
func (s *Service) Progression(ctx context.Context, key model.RecordKey) ([]model.Record, error) {
	cur, err := s.Current(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.HistoryOf(ctx, cur.ID)
}

// CurrentRecords returns every current record ordered by key.
func (s *Service) CurrentRecords(ctx context.Context) ([]model.Record, error) {
	recs, err := s.store.ListCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("list current: %w", err)
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].Key(), recs[j].Key()
		if a.DisciplineID != b.DisciplineID {
			return a.DisciplineID < b.DisciplineID
		}
		if a.Gender != b.Gender {
			return a.Gender < b.Gender
		}
		return a.Category < b.Category
	})
	return recs, nil
}
