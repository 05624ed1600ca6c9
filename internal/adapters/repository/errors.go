package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrKeyMismatch      = errors.New("record does not belong to the scope key")
	ErrDuplicateCurrent = errors.New("key already has a different current record")
	ErrNotCurrent       = errors.New("record is not the current record of the key")
	ErrContention       = errors.New("too many conflicting writers for key")
	ErrClosed           = errors.New("store closed")
	ErrUnknownDriver    = errors.New("unknown store driver")
	ErrOutOfRange       = errors.New("value out of storable range")
)
