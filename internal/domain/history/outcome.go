package history

import (
	"errors"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/performance"
)

// Outcome groups submission and lookup results into the shapes a caller
// reports differently: a domain rejection, bad input, a missing record and
// a server fault.
type Outcome uint8

// Outcomes.
const (
	OutcomeAccepted Outcome = iota
	OutcomeRejected
	OutcomeInvalidInput
	OutcomeNotFound
	OutcomeInternal
)

var outcomeNames = [...]string{
	OutcomeAccepted:     "accepted",
	OutcomeRejected:     "rejected",
	OutcomeInvalidInput: "invalid",
	OutcomeNotFound:     "not_found",
	OutcomeInternal:     "error",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "error"
}

// Classify maps an error returned by this package (or one it passed
// through) to an Outcome. A nil error is OutcomeAccepted.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAccepted
	case errors.Is(err, ErrNotAnImprovement), errors.Is(err, ErrPredatesCurrent):
		return OutcomeRejected
	case errors.Is(err, performance.ErrMalformed),
		errors.Is(err, performance.ErrNegative),
		errors.Is(err, performance.ErrUnknownKind),
		errors.Is(err, model.ErrInvalidCandidate),
		errors.Is(err, model.ErrInvalidKey),
		errors.Is(err, model.ErrUnknownGender),
		errors.Is(err, model.ErrUnknownCategory),
		errors.Is(err, ErrUnitMismatch),
		errors.Is(err, ErrDuplicateID):
		return OutcomeInvalidInput
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeInternal
	}
}

// IsRejected reports whether err is a domain rejection and returns it.
func IsRejected(err error) (*RejectedError, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
