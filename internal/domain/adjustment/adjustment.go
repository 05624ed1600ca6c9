// Package adjustment derives age-category equivalents from a Senior
// reference performance.
//
// The factors approximate how the top performance of a category compares to
// the Senior one. They are used for seeding and estimation only; records
// always store real submitted performances.
package adjustment

import (
	"fmt"
	"math"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/performance"
)

// factors is indexed [kind][gender][category]. Run factors stretch the time,
// Jump and Throw factors shorten the distance. Senior is always 1.
var factors = [len(performance.Kinds)][len(model.Genders)][len(model.Categories)]float64{
	performance.Run: {
		model.Men:   {model.U18: 1.06, model.U20: 1.03, model.U23: 1.01, model.Senior: 1, model.Master: 1.08},
		model.Women: {model.U18: 1.07, model.U20: 1.04, model.U23: 1.015, model.Senior: 1, model.Master: 1.10},
	},
	performance.Jump: {
		model.Men:   {model.U18: 0.88, model.U20: 0.94, model.U23: 0.98, model.Senior: 1, model.Master: 0.90},
		model.Women: {model.U18: 0.89, model.U20: 0.95, model.U23: 0.98, model.Senior: 1, model.Master: 0.89},
	},
	performance.Throw: {
		model.Men:   {model.U18: 0.80, model.U20: 0.88, model.U23: 0.95, model.Senior: 1, model.Master: 0.85},
		model.Women: {model.U18: 0.82, model.U20: 0.90, model.U23: 0.95, model.Senior: 1, model.Master: 0.86},
	},
}

// Factor returns the multiplier for a category relative to Senior.
// It panics on an undeclared enum value.
func Factor(kind performance.Kind, category model.AgeCategory, gender model.Gender) float64 {
	return factors[kind][gender][category]
}

// DeriveEquivalent scales reference by the factor of category and gender.
// Durations keep microsecond resolution and distances full float precision;
// rounding is left to display.
func DeriveEquivalent(reference performance.Value, kind performance.Kind, category model.AgeCategory, gender model.Gender) (performance.Value, error) {
	if !kind.Valid() {
		return performance.Value{}, fmt.Errorf("%w: %d", performance.ErrUnknownKind, uint8(kind))
	}
	if !reference.Matches(kind) {
		return performance.Value{}, fmt.Errorf("%w: %s reference for %s", ErrUnitMismatch, reference.Unit(), kind)
	}
	if !category.Valid() {
		return performance.Value{}, fmt.Errorf("%w: %d", model.ErrUnknownCategory, uint8(category))
	}
	if !gender.Valid() {
		return performance.Value{}, fmt.Errorf("%w: %d", model.ErrUnknownGender, uint8(gender))
	}

	f := Factor(kind, category, gender)
	if kind == performance.Run {
		scaled := math.Round(float64(reference.Micros()) * f)
		if scaled >= math.MaxUint64 {
			return performance.Value{}, fmt.Errorf("%w: %s", ErrOverflow, reference)
		}
		return performance.Duration(uint64(scaled)), nil
	}
	return performance.Distance(reference.Meters() * f)
}

// Equivalent is one derived performance of an estimate.
type Equivalent struct {
	Category model.AgeCategory
	Factor   float64
	Value    performance.Value
}

// Estimate derives the equivalent of a Senior reference for every category,
// in declaration order.
func Estimate(reference performance.Value, kind performance.Kind, gender model.Gender) ([]Equivalent, error) {
	out := make([]Equivalent, 0, len(model.Categories))
	for _, c := range model.Categories {
		v, err := DeriveEquivalent(reference, kind, c, gender)
		if err != nil {
			return nil, err
		}
		out = append(out, Equivalent{Category: c, Factor: Factor(kind, c, gender), Value: v})
	}
	return out, nil
}
