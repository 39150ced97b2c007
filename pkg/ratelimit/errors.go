package ratelimit

import "errors"

var (
	ErrInvalidWindow = errors.New("ratelimit: window must be at least one millisecond")
	ErrCounterFailed = errors.New("ratelimit: counter store failed")
)
