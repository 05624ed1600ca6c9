// Package performance represents race times and field distances as one
// comparable value.
//
// A Value is either a Duration (elapsed time, lower is better) or a Distance
// (meters, higher is better). The direction of improvement is only ever
// decided by IsBetterThan so calling code never special-cases it.
package performance

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Unit tags which half of the union a Value holds.
type Unit uint8

// Units. The zero Unit marks an empty Value.
const (
	UnitDuration Unit = iota + 1
	UnitDistance
)

func (u Unit) String() string {
	switch u {
	case UnitDuration:
		return "duration"
	case UnitDistance:
		return "distance"
	default:
		return "none"
	}
}

// Time conversion constants.
const (
	microsPerCenti  = 10_000
	microsPerSecond = 1_000_000
	microsPerMinute = 60 * microsPerSecond
	microsPerHour   = 60 * microsPerMinute
)

// Value is an immutable, non-negative performance.
type Value struct {
	unit   Unit
	micros uint64
	meters float64
}

// Duration builds a race time from total microseconds.
func Duration(micros uint64) Value {
	return Value{unit: UnitDuration, micros: micros}
}

// DurationOf builds a race time from a time.Duration, truncated to the
// microsecond.
func DurationOf(d time.Duration) (Value, error) {
	if d < 0 {
		return Value{}, ErrNegative
	}
	return Duration(uint64(d / time.Microsecond)), nil
}

// Distance builds a field measurement in meters.
func Distance(meters float64) (Value, error) {
	if math.IsNaN(meters) || math.IsInf(meters, 0) {
		return Value{}, ErrMalformed
	}
	if meters < 0 {
		return Value{}, ErrNegative
	}
	return Value{unit: UnitDistance, meters: meters}, nil
}

// Unit returns the tag of v.
func (v Value) Unit() Unit { return v.unit }

// IsZero reports whether v was never constructed.
func (v Value) IsZero() bool { return v.unit == 0 }

// Micros returns the elapsed microseconds of a Duration, 0 otherwise.
func (v Value) Micros() uint64 { return v.micros }

// Meters returns the meters of a Distance, 0 otherwise.
func (v Value) Meters() float64 { return v.meters }

// Magnitude returns seconds for a Duration and meters for a Distance.
func (v Value) Magnitude() float64 {
	if v.unit == UnitDuration {
		return float64(v.micros) / microsPerSecond
	}
	return v.meters
}

// Equal reports whether both values carry the same unit and magnitude.
func (v Value) Equal(o Value) bool {
	return v.unit == o.unit && v.micros == o.micros && v.meters == o.meters
}

// Matches reports whether v's unit is the one kind is measured in.
func (v Value) Matches(kind Kind) bool {
	switch kind {
	case Run:
		return v.unit == UnitDuration
	case Jump, Throw:
		return v.unit == UnitDistance
	default:
		return false
	}
}

// IsBetterThan reports whether v strictly beats other for a discipline of
// the given kind. Runs improve downwards, jumps and throws upwards. Values
// that do not match kind are never better.
func (v Value) IsBetterThan(other Value, kind Kind) bool {
	if !v.Matches(kind) || !other.Matches(kind) {
		return false
	}
	if kind == Run {
		return v.micros < other.micros
	}
	return v.meters > other.meters
}

// String returns the canonical form.
func (v Value) String() string { return v.Canonical() }

// valueJSON is the persisted shape of a Value. Exactly one field is set.
type valueJSON struct {
	DurationMicros *uint64  `json:"duration_us,omitempty"`
	DistanceMeters *float64 `json:"distance_m,omitempty"`
}

// MarshalJSON encodes v without loss of precision.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.unit {
	case UnitDuration:
		us := v.micros
		return json.Marshal(valueJSON{DurationMicros: &us})
	case UnitDistance:
		m := v.meters
		return json.Marshal(valueJSON{DistanceMeters: &m})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes the shape written by MarshalJSON.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	var raw valueJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode performance: %w", err)
	}
	switch {
	case raw.DurationMicros != nil && raw.DistanceMeters == nil:
		*v = Duration(*raw.DurationMicros)
		return nil
	case raw.DistanceMeters != nil && raw.DurationMicros == nil:
		d, err := Distance(*raw.DistanceMeters)
		if err != nil {
			return fmt.Errorf("decode performance: %w", err)
		}
		*v = d
		return nil
	default:
		return fmt.Errorf("decode performance: %w", errors.New("exactly one of duration_us or distance_m required"))
	}
}

// FromParts rebuilds a Value from its stored columns.
func FromParts(unit Unit, micros uint64, meters float64) (Value, error) {
	switch unit {
	case UnitDuration:
		return Duration(micros), nil
	case UnitDistance:
		return Distance(meters)
	default:
		return Value{}, fmt.Errorf("%w: unit %d", ErrMalformed, uint8(unit))
	}
}
