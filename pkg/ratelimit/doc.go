// Package ratelimit bounds outbound calls per subject over a fixed time window.
//
// A [Limiter] keeps its counts in a [Counter] shared by every process, so the
// cap holds across scheduler instances. [RedisCounter] is the production
// counter; [MemoryCounter] serves tests and single-process setups.
//
//	lim := ratelimit.New(ratelimit.NewRedisCounter(client), ratelimit.WithLogger(log))
//	if ok, _ := lim.Allow(ctx, "telegram", 25, time.Second); !ok {
//		// treat as a transient failure and retry later
//	}
//
// Allow never blocks. When the counter store is unreachable it rejects the
// call and logs a warning.
//
// [Pacer] is a local token bucket placed in front of a channel API to smooth
// bursts produced by concurrent workers.
package ratelimit
