package performance

import (
	"errors"
	"fmt"
)

// Sentinel kinds for performance errors. These allow errors.Is from callers.
var (
	ErrMalformed   = errors.New("malformed performance")
	ErrNegative    = errors.New("negative performance")
	ErrUnknownKind = errors.New("unknown discipline kind")
)

// ParseError describes a raw performance string that could not be turned
// into a Value. It unwraps to ErrMalformed or ErrNegative.
type ParseError struct {
	Raw    string
	Kind   Kind
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("parse %s performance %q: %v", e.Kind, e.Raw, e.Err)
	}
	return fmt.Sprintf("parse %s performance %q: %v: %s", e.Kind, e.Raw, e.Err, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func malformed(raw string, kind Kind, reason string) error {
	return &ParseError{Raw: raw, Kind: kind, Reason: reason, Err: ErrMalformed}
}

func negative(raw string, kind Kind) error {
	return &ParseError{Raw: raw, Kind: kind, Err: ErrNegative}
}
