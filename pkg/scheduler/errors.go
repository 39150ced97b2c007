package scheduler

import "errors"

var (
	ErrClaimFailed      = errors.New("scheduler: failed to claim due broadcasts")
	ErrPoolFull         = errors.New("scheduler: dispatcher has no free worker")
	ErrDispatcherClosed = errors.New("scheduler: dispatcher is shut down")
	ErrShutdownTimeout  = errors.New("scheduler: running deliveries did not finish before deadline")
)
