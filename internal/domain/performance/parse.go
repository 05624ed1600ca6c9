package performance

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Parsing limits.
const (
	maxFractionDigits = 6
	centiDigits       = 2
	sexagesimal       = 60
)

// Parse reads a raw performance for a discipline of the given kind.
//
// Run accepts "ss.cc", "m:ss.cc" and "h:mm:ss.cc" (fraction optional, up to
// six digits). Jump and Throw accept decimal meters with an optional "m"
// suffix. Both accept a comma as decimal separator.
func Parse(raw string, kind Kind) (Value, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return Value{}, malformed(raw, kind, "empty")
	}

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = strings.TrimSpace(s[1:])
	}

	var (
		v   Value
		err error
	)
	switch kind {
	case Run:
		v, err = parseDuration(raw, s)
	case Jump, Throw:
		v, err = parseDistance(raw, s, kind)
	default:
		return Value{}, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}
	if err != nil {
		return Value{}, err
	}
	// A well-formed magnitude behind a minus sign is a sign error, not a
	// shape error; "-0" is still zero.
	if neg && (v.micros != 0 || v.meters != 0) {
		return Value{}, negative(raw, kind)
	}
	return v, nil
}

// MustParse is Parse for literals known to be valid. It panics on error.
func MustParse(raw string, kind Kind) Value {
	v, err := Parse(raw, kind)
	if err != nil {
		panic(err)
	}
	return v
}

func parseDuration(raw, s string) (Value, error) {
	fields := strings.Split(s, ":")
	if len(fields) > 3 {
		return Value{}, malformed(raw, Run, "too many ':' separators")
	}

	secField := fields[len(fields)-1]
	whole, fracMicros, err := splitSeconds(secField)
	if err != nil {
		return Value{}, malformed(raw, Run, err.Error())
	}

	total, ok := mulAdd(fracMicros, whole, microsPerSecond)
	if !ok {
		return Value{}, malformed(raw, Run, "seconds out of range")
	}
	if len(fields) == 1 {
		return Duration(total), nil
	}
	if whole >= sexagesimal {
		return Value{}, malformed(raw, Run, "seconds must be below 60")
	}

	minutes, err := parseDigits(fields[len(fields)-2])
	if err != nil {
		return Value{}, malformed(raw, Run, "minutes: "+err.Error())
	}
	if total, ok = mulAdd(total, minutes, microsPerMinute); !ok {
		return Value{}, malformed(raw, Run, "minutes out of range")
	}
	if len(fields) == 2 {
		return Duration(total), nil
	}
	if minutes >= sexagesimal {
		return Value{}, malformed(raw, Run, "minutes must be below 60")
	}

	hours, err := parseDigits(fields[0])
	if err != nil {
		return Value{}, malformed(raw, Run, "hours: "+err.Error())
	}
	if total, ok = mulAdd(total, hours, microsPerHour); !ok {
		return Value{}, malformed(raw, Run, "hours out of range")
	}
	return Duration(total), nil
}

// mulAdd returns acc + n*unit, reporting false on uint64 overflow.
func mulAdd(acc, n, unit uint64) (uint64, bool) {
	hi, lo := bits.Mul64(n, unit)
	if hi != 0 {
		return 0, false
	}
	sum, carry := bits.Add64(acc, lo, 0)
	return sum, carry == 0
}

// splitSeconds parses "ss" or "ss.f{1,6}" into whole seconds and the
// fractional part in microseconds.
func splitSeconds(s string) (uint64, uint64, error) {
	wholePart, frac, hasFrac := strings.Cut(s, ".")
	whole, err := parseDigits(wholePart)
	if err != nil {
		return 0, 0, fmt.Errorf("seconds: %w", err)
	}
	if !hasFrac {
		return whole, 0, nil
	}
	if frac == "" || len(frac) > maxFractionDigits {
		return 0, 0, fmt.Errorf("fraction must have 1 to %d digits", maxFractionDigits)
	}
	f, err := parseDigits(frac)
	if err != nil {
		return 0, 0, fmt.Errorf("fraction: %w", err)
	}
	for i := len(frac); i < maxFractionDigits; i++ {
		f *= 10
	}
	return whole, f, nil
}

func parseDigits(s string) (uint64, error) {
	if err := checkDigits(s); err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("out of range")
	}
	return n, nil
}

func checkDigits(s string) error {
	if s == "" {
		return fmt.Errorf("missing digits")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return fmt.Errorf("unexpected %q", r)
		}
	}
	return nil
}

func parseDistance(raw, s string, kind Kind) (Value, error) {
	s = strings.TrimSpace(strings.TrimSuffix(s, "m"))
	wholePart, frac, hasFrac := strings.Cut(s, ".")
	if err := checkDigits(wholePart); err != nil {
		return Value{}, malformed(raw, kind, "meters: "+err.Error())
	}
	if hasFrac {
		if err := checkDigits(frac); err != nil {
			return Value{}, malformed(raw, kind, "fraction: "+err.Error())
		}
	}
	m, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, malformed(raw, kind, "meters out of range")
	}
	return Distance(m)
}

// Canonical returns the round-trip-stable text form of v.
//
// Durations under a minute render as "ss.cc", longer ones as "h:mm:ss.cc".
// Distances render with two decimals. Values carrying more precision than
// that (derived equivalents) keep the extra digits so Parse(Canonical())
// always yields v again.
func (v Value) Canonical() string {
	switch v.unit {
	case UnitDuration:
		return canonicalDuration(v.micros)
	case UnitDistance:
		return canonicalDistance(v.meters)
	default:
		return ""
	}
}

func canonicalDuration(us uint64) string {
	frac := fractionDigits(us % microsPerSecond)
	if us < microsPerMinute {
		return fmt.Sprintf("%d.%s", us/microsPerSecond, frac)
	}
	h := us / microsPerHour
	m := us % microsPerHour / microsPerMinute
	sec := us % microsPerMinute / microsPerSecond
	return fmt.Sprintf("%d:%02d:%02d.%s", h, m, sec, frac)
}

// fractionDigits renders sub-second microseconds with two digits when they
// are whole centiseconds and with up to six significant digits otherwise.
func fractionDigits(us uint64) string {
	if us%microsPerCenti == 0 {
		return fmt.Sprintf("%02d", us/microsPerCenti)
	}
	s := strings.TrimRight(fmt.Sprintf("%06d", us), "0")
	if len(s) < centiDigits {
		s += strings.Repeat("0", centiDigits-len(s))
	}
	return s
}

func canonicalDistance(m float64) string {
	fixed := strconv.FormatFloat(m, 'f', centiDigits, 64)
	if back, err := strconv.ParseFloat(fixed, 64); err == nil && back == m {
		return fixed
	}
	exact := strconv.FormatFloat(m, 'f', -1, 64)
	if !strings.Contains(exact, ".") || math.IsInf(m, 0) {
		return fixed
	}
	return exact
}
