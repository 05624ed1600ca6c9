// Package discipline is the built-in catalog of track and field events.
package discipline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/podium/internal/domain/performance"
)

// ErrUnknown is returned by Lookup for ids not in the catalog.
var ErrUnknown = errors.New("unknown discipline")

// Discipline describes how an event is measured and displayed.
type Discipline struct {
	ID      string
	Name    string
	Kind    performance.Kind
	Profile performance.RunningProfile
}

func run(id, name string, p performance.RunningProfile) Discipline {
	return Discipline{ID: id, Name: name, Kind: performance.Run, Profile: p}
}

func field(id, name string, k performance.Kind) Discipline {
	return Discipline{ID: id, Name: name, Kind: k}
}

var catalog = map[string]Discipline{}

func init() {
	for _, d := range []Discipline{
		run("60m", "60 metres", performance.Short),
		run("100m", "100 metres", performance.Short),
		run("200m", "200 metres", performance.Short),
		run("400m", "400 metres", performance.Short),
		run("60mh", "60 metres hurdles", performance.Short),
		run("100mh", "100 metres hurdles", performance.Short),
		run("110mh", "110 metres hurdles", performance.Short),
		run("400mh", "400 metres hurdles", performance.Short),
		run("800m", "800 metres", performance.Middle),
		run("1500m", "1500 metres", performance.Middle),
		run("mile", "Mile", performance.Middle),
		run("3000m", "3000 metres", performance.Middle),
		run("3000msc", "3000 metres steeplechase", performance.Middle),
		run("5000m", "5000 metres", performance.Long),
		run("10000m", "10,000 metres", performance.Long),
		run("half-marathon", "Half marathon", performance.Long),
		run("marathon", "Marathon", performance.Long),
		field("high-jump", "High jump", performance.Jump),
		field("pole-vault", "Pole vault", performance.Jump),
		field("long-jump", "Long jump", performance.Jump),
		field("triple-jump", "Triple jump", performance.Jump),
		field("shot-put", "Shot put", performance.Throw),
		field("discus", "Discus throw", performance.Throw),
		field("hammer", "Hammer throw", performance.Throw),
		field("javelin", "Javelin throw", performance.Throw),
	} {
		catalog[d.ID] = d
	}
}

// Lookup returns the discipline with the given id. Ids are case-insensitive.
func Lookup(id string) (Discipline, error) {
	d, ok := catalog[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Discipline{}, fmt.Errorf("%w: %q", ErrUnknown, id)
	}
	return d, nil
}

// All returns the catalog sorted by kind, then id.
func All() []Discipline {
	out := make([]Discipline, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}
