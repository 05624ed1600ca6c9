package model

import "errors"

// Sentinel errors for record construction.
var (
	ErrInvalidCandidate = errors.New("invalid candidate")
	ErrUnknownGender    = errors.New("unknown gender")
	ErrUnknownCategory  = errors.New("unknown age category")
	ErrInvalidKey       = errors.New("invalid record key")
)
