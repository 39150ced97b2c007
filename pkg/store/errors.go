package store

import "errors"

var (
	// ErrNotFound is returned when a broadcast, delivery or job does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrTerminal is returned when writing to a row that is already terminal.
	ErrTerminal = errors.New("store: row is terminal")

	// ErrInvalidTransition is returned for a non-monotonic broadcast status change.
	ErrInvalidTransition = errors.New("store: invalid status transition")

	// ErrLeaseLost is returned when a broadcast is no longer held by the given claim.
	ErrLeaseLost = errors.New("store: claim lease lost")

	// ErrClaimed is returned when a retry pass is requested while another one holds the broadcast.
	ErrClaimed = errors.New("store: broadcast is claimed by another pass")

	// ErrInvalidTarget is returned when a target cannot be expanded.
	ErrInvalidTarget = errors.New("store: invalid target")
)
