package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidOdds   = errors.New("odds out of range")
	ErrInvalidQuote  = errors.New("invalid quote")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrSourceFailed  = errors.New("source fetch failed")
	ErrLockHeld      = errors.New("lock already held")
)
