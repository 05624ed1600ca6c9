package adjustment

import "errors"

var (
	// ErrUnitMismatch is returned when the reference is not measured in the
	// unit of the requested kind.
	ErrUnitMismatch = errors.New("reference unit does not match kind")
	// ErrOverflow is returned when a scaled duration does not fit.
	ErrOverflow = errors.New("derived performance out of range")
)
