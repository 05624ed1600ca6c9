// Package format renders performances and record keys for people.
//
// Everything here is pure: no I/O and no locale state beyond the fixed
// layouts below.
package format

import (
	"fmt"
	"math"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/performance"
)

// Display resolution constants.
const (
	microsPerCenti  = 10_000
	microsPerSecond = 1_000_000
	centisPerSecond = 100
	centisPerMinute = 60 * centisPerSecond
	centisPerHour   = 60 * centisPerMinute
	secondsPerHour  = 3600
	secondsPerMin   = 60
	micrometers     = 1e6
	microsPerCm     = 10_000
)

// Display renders v for a discipline of the given kind and running profile.
//
//	Short         9.58s
//	Middle, Long  3:26.00, or 2h01min09s from one hour on
//	Jump, Throw   6.52m
//
// Times round up to the next hundredth (next second in the hour layout) and
// distances truncate to the centimetre, as results are ratified. A value that
// does not belong to kind falls back to its canonical form.
func Display(v performance.Value, kind performance.Kind, profile performance.RunningProfile) string {
	if !v.Matches(kind) {
		return v.Canonical()
	}
	switch kind {
	case performance.Run:
		if profile == performance.Short {
			return sprint(v.Micros())
		}
		return clock(v.Micros())
	default:
		return meters(v.Meters())
	}
}

// sprint never uses the colon layout, whatever the magnitude.
func sprint(us uint64) string {
	cs := ceilDiv(us, microsPerCenti)
	return fmt.Sprintf("%d.%02ds", cs/centisPerSecond, cs%centisPerSecond)
}

func clock(us uint64) string {
	cs := ceilDiv(us, microsPerCenti)
	if cs < centisPerHour {
		return fmt.Sprintf("%d:%02d.%02d", cs/centisPerMinute, cs%centisPerMinute/centisPerSecond, cs%centisPerSecond)
	}
	sec := ceilDiv(us, microsPerSecond)
	return fmt.Sprintf("%dh%02dmin%02ds", sec/secondsPerHour, sec%secondsPerHour/secondsPerMin, sec%secondsPerMin)
}

func meters(m float64) string {
	// Go through whole micrometres first so 6.52 (stored as 6.5199999…)
	// does not truncate to 6.51.
	cm := uint64(math.Round(m*micrometers)) / microsPerCm
	return fmt.Sprintf("%d.%02dm", cm/centisPerSecond, cm%centisPerSecond)
}

func ceilDiv(n, d uint64) uint64 {
	q := n / d
	if n%d != 0 {
		q++
	}
	return q
}

// CategoryLabel returns the display label of an age category.
func CategoryLabel(c model.AgeCategory) string {
	switch c {
	case model.U18:
		return "Under 18"
	case model.U20:
		return "Under 20"
	case model.U23:
		return "Under 23"
	case model.Senior:
		return "Senior"
	case model.Master:
		return "Masters"
	default:
		return c.String()
	}
}

// GenderLabel returns the display label of a gender.
func GenderLabel(g model.Gender) string {
	switch g {
	case model.Men:
		return "Men"
	case model.Women:
		return "Women"
	default:
		return g.String()
	}
}

// KeyLabel renders a record slot, e.g. "100m Men, Under 20". name is the
// discipline's display name; the discipline id is used when it is empty.
func KeyLabel(key model.RecordKey, name string) string {
	if name == "" {
		name = key.DisciplineID
	}
	return fmt.Sprintf("%s %s, %s", name, GenderLabel(key.Gender), CategoryLabel(key.Category))
}
