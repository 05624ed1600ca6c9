// Package model contains the record aggregate passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/podium/internal/domain/performance"
)

const keySep = "/"

// RecordKey identifies one independent "current record" slot. It is
// comparable and can be used as a map key.
type RecordKey struct {
	DisciplineID string      `json:"discipline_id"`
	Gender       Gender      `json:"gender"`
	Category     AgeCategory `json:"category"`
}

// String renders the key as "discipline/gender/category".
func (k RecordKey) String() string {
	return k.DisciplineID + keySep + k.Gender.String() + keySep + k.Category.String()
}

// Validate checks that every component of the key is set and known.
func (k RecordKey) Validate() error {
	switch {
	case strings.TrimSpace(k.DisciplineID) == "":
		return fmt.Errorf("%w: empty discipline", ErrInvalidKey)
	case strings.Contains(k.DisciplineID, keySep):
		return fmt.Errorf("%w: discipline %q contains %q", ErrInvalidKey, k.DisciplineID, keySep)
	case !k.Gender.Valid():
		return fmt.Errorf("%w: %w", ErrInvalidKey, ErrUnknownGender)
	case !k.Category.Valid():
		return fmt.Errorf("%w: %w", ErrInvalidKey, ErrUnknownCategory)
	}
	return nil
}

// ParseRecordKey parses the form produced by RecordKey.String.
func ParseRecordKey(s string) (RecordKey, error) {
	parts := strings.Split(strings.TrimSpace(s), keySep)
	if len(parts) != 3 {
		return RecordKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	g, err := ParseGender(parts[1])
	if err != nil {
		return RecordKey{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	c, err := ParseAgeCategory(parts[2])
	if err != nil {
		return RecordKey{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	k := RecordKey{DisciplineID: parts[0], Gender: g, Category: c}
	return k, k.Validate()
}

// Record is one ratified performance and its place in the chain of its key.
//
// Performance, AchievedOn and the references never change after creation.
// IsCurrent and UpdatedAt change exactly once, when a later record for the
// same key supersedes this one. PreviousRecord is the only link stored;
// successors are found by querying for records pointing back here.
type Record struct {
	ID             uuid.UUID         `json:"id"`
	DisciplineID   string            `json:"discipline_id"`
	Kind           performance.Kind  `json:"kind"`
	AthleteID      string            `json:"athlete_id"`
	LocationID     string            `json:"location_id"`
	AchievedOn     time.Time         `json:"achieved_on"`
	Performance    performance.Value `json:"performance"`
	Gender         Gender            `json:"gender"`
	Category       AgeCategory       `json:"category"`
	IsCurrent      bool              `json:"is_current"`
	PreviousRecord uuid.NullUUID     `json:"previous_record"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Key returns the slot r belongs to.
func (r Record) Key() RecordKey {
	return RecordKey{DisciplineID: r.DisciplineID, Gender: r.Gender, Category: r.Category}
}

// State returns Current or Superseded.
func (r Record) State() State {
	if r.IsCurrent {
		return Current
	}
	return Superseded
}

// HasPrevious reports whether r superseded another record.
func (r Record) HasPrevious() bool { return r.PreviousRecord.Valid }

// Validate checks the fields a store needs to persist r.
func (r Record) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidCandidate)
	}
	if err := r.Key().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidCandidate, performance.ErrUnknownKind)
	}
	if r.AchievedOn.IsZero() {
		return fmt.Errorf("%w: missing achieved date", ErrInvalidCandidate)
	}
	if !r.Performance.Matches(r.Kind) {
		return fmt.Errorf("%w: %s performance for %s discipline", ErrInvalidCandidate, r.Performance.Unit(), r.Kind)
	}
	return nil
}
