package model

import (
	"fmt"
	"strings"
)

// Gender of the record slot.
type Gender uint8

// Genders.
const (
	Men Gender = iota
	Women
)

// Genders lists every Gender in declaration order.
var Genders = [...]Gender{Men, Women}

var genderNames = [...]string{Men: "men", Women: "women"}

// Valid reports whether g is a declared gender.
func (g Gender) Valid() bool { return int(g) < len(genderNames) }

func (g Gender) String() string {
	if !g.Valid() {
		return fmt.Sprintf("gender(%d)", uint8(g))
	}
	return genderNames[g]
}

// ParseGender accepts "men"/"women" and the single letters "m"/"w".
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "men", "m", "male":
		return Men, nil
	case "women", "w", "female", "f":
		return Women, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownGender, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (g Gender) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGender, uint8(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Gender) UnmarshalText(b []byte) error {
	v, err := ParseGender(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// AgeCategory is the age group of the record slot. Senior is the reference
// point for adjustments; the declaration order carries no ranking.
type AgeCategory uint8

// Age categories.
const (
	U18 AgeCategory = iota
	U20
	U23
	Senior
	Master
)

// Categories lists every AgeCategory in declaration order.
var Categories = [...]AgeCategory{U18, U20, U23, Senior, Master}

var categoryNames = [...]string{U18: "u18", U20: "u20", U23: "u23", Senior: "senior", Master: "master"}

// Valid reports whether c is a declared category.
func (c AgeCategory) Valid() bool { return int(c) < len(categoryNames) }

func (c AgeCategory) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// ParseAgeCategory parses the lowercase name of a category. "masters" is
// accepted as an alias.
func ParseAgeCategory(s string) (AgeCategory, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "masters" {
		return Master, nil
	}
	for i, n := range categoryNames {
		if n == name {
			return AgeCategory(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// MarshalText implements encoding.TextMarshaler.
func (c AgeCategory) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *AgeCategory) UnmarshalText(b []byte) error {
	v, err := ParseAgeCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// State is the position of a record in its chain.
type State uint8

// Record states. A record only ever moves from Current to Superseded.
const (
	Current State = iota
	Superseded
)

func (s State) String() string {
	if s == Current {
		return "current"
	}
	return "superseded"
}
