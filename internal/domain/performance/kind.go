package performance

import (
	"fmt"
	"strings"
)

// Kind is the measurement family of a discipline.
type Kind uint8

// Discipline kinds. Run is timed, Jump and Throw are measured.
const (
	Run Kind = iota
	Jump
	Throw
)

// Kinds lists every Kind in declaration order.
var Kinds = [...]Kind{Run, Jump, Throw}

var kindNames = [...]string{Run: "run", Jump: "jump", Throw: "throw"}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool { return int(k) < len(kindNames) }

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// ParseKind parses the lowercase name of a kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// RunningProfile selects how a Run discipline is displayed and adjusted.
// It carries no meaning for Jump and Throw.
type RunningProfile uint8

// Running profiles.
const (
	Short RunningProfile = iota
	Middle
	Long
)

var profileNames = [...]string{Short: "short", Middle: "middle", Long: "long"}

// Valid reports whether p is one of the declared profiles.
func (p RunningProfile) Valid() bool { return int(p) < len(profileNames) }

func (p RunningProfile) String() string {
	if !p.Valid() {
		return fmt.Sprintf("profile(%d)", uint8(p))
	}
	return profileNames[p]
}

// ParseRunningProfile parses the lowercase name of a running profile.
func ParseRunningProfile(s string) (RunningProfile, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range profileNames {
		if n == name {
			return RunningProfile(i), nil
		}
	}
	return 0, fmt.Errorf("unknown running profile %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p RunningProfile) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("unknown running profile %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *RunningProfile) UnmarshalText(b []byte) error {
	v, err := ParseRunningProfile(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
