package history

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/podium/internal/domain/model"
)

// Sentinel kinds for history errors. These allow errors.Is from callers.
var (
	ErrNotAnImprovement = errors.New("not an improvement")
	ErrPredatesCurrent  = errors.New("predates the current record")
	ErrUnitMismatch     = errors.New("performance unit does not match discipline kind")
	ErrCycleDetected    = errors.New("cycle detected in record history")
	ErrBrokenChain      = errors.New("broken record chain")
	ErrChainTooLong     = errors.New("record chain exceeds maximum length")
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateID      = errors.New("record id already stored")
)

// Reason says why a submission was rejected.
type Reason uint8

// Rejection reasons.
const (
	ReasonNotAnImprovement Reason = iota
	ReasonPredatesCurrent
)

func (r Reason) String() string {
	switch r {
	case ReasonNotAnImprovement:
		return "not_an_improvement"
	case ReasonPredatesCurrent:
		return "predates_current"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// RejectedError is the domain outcome of a submission that does not become
// the current record. Nothing was written when it is returned.
type RejectedError struct {
	Reason    Reason
	Candidate model.Record
	Current   model.Record
}

func (e *RejectedError) Error() string {
	key := e.Candidate.Key()
	switch e.Reason {
	case ReasonPredatesCurrent:
		return fmt.Sprintf("record rejected for %s: achieved %s, before current record of %s",
			key, e.Candidate.AchievedOn.Format(model.DateLayout), e.Current.AchievedOn.Format(model.DateLayout))
	default:
		return fmt.Sprintf("record rejected for %s: %s does not improve on %s",
			key, e.Candidate.Performance, e.Current.Performance)
	}
}

// Unwrap maps the reason to its sentinel.
func (e *RejectedError) Unwrap() error {
	if e.Reason == ReasonPredatesCurrent {
		return ErrPredatesCurrent
	}
	return ErrNotAnImprovement
}

// HistoryError reports a chain that could not be walked. Start is the record
// the walk began at and At the link where it stopped.
type HistoryError struct {
	Start   uuid.UUID
	At      uuid.UUID
	Visited int
	Err     error
}

func (e *HistoryError) Error() string {
	return fmt.Sprintf("history of %s: %v at %s after %d records", e.Start, e.Err, e.At, e.Visited)
}

func (e *HistoryError) Unwrap() error { return e.Err }
