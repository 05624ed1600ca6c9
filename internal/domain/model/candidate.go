package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/podium/internal/domain/performance"
)

// DateLayout is the text form of an achieved-on date.
const DateLayout = "2006-01-02"

// Candidate is a submission before it becomes a Record. The caller has
// already resolved the discipline kind; the performance is still raw text.
type Candidate struct {
	DisciplineID string
	Kind         performance.Kind
	AthleteID    string
	LocationID   string
	AchievedOn   time.Time
	Gender       Gender
	Category     AgeCategory
	Performance  string
}

// Key returns the slot the candidate targets.
func (c Candidate) Key() RecordKey {
	return RecordKey{DisciplineID: c.DisciplineID, Gender: c.Gender, Category: c.Category}
}

// NewRecord turns c into a Record with a fresh id. The performance is parsed
// for c.Kind and parse errors are returned unchanged. The record is not yet
// current and has no predecessor; the history service decides both.
func NewRecord(c Candidate, now time.Time) (Record, error) {
	if err := c.Key().Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}
	if !c.Kind.Valid() {
		return Record{}, fmt.Errorf("%w: %w", ErrInvalidCandidate, performance.ErrUnknownKind)
	}
	if strings.TrimSpace(c.AthleteID) == "" {
		return Record{}, fmt.Errorf("%w: missing athlete", ErrInvalidCandidate)
	}
	if strings.TrimSpace(c.LocationID) == "" {
		return Record{}, fmt.Errorf("%w: missing location", ErrInvalidCandidate)
	}
	if c.AchievedOn.IsZero() {
		return Record{}, fmt.Errorf("%w: missing achieved date", ErrInvalidCandidate)
	}
	day := Day(c.AchievedOn)
	if !now.IsZero() && day.After(Day(now)) {
		return Record{}, fmt.Errorf("%w: achieved on %s is in the future", ErrInvalidCandidate, day.Format(DateLayout))
	}

	v, err := performance.Parse(c.Performance, c.Kind)
	if err != nil {
		return Record{}, err
	}

	now = now.UTC()
	return Record{
		ID:           uuid.New(),
		DisciplineID: c.DisciplineID,
		Kind:         c.Kind,
		AthleteID:    c.AthleteID,
		LocationID:   c.LocationID,
		AchievedOn:   day,
		Performance:  v,
		Gender:       c.Gender,
		Category:     c.Category,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Day truncates t to midnight UTC of its own calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "YYYY-MM-DD" date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %w", ErrInvalidCandidate, s, err)
	}
	return t, nil
}
