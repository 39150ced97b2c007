package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Healthcheck pings client. It also fails when, since the previous check,
// callers timed out waiting for a connection while none was idle: rate
// limit checks stall behind an exhausted pool even while pings succeed.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	var seen atomic.Uint32
	return func(ctx context.Context) error {
		if client == nil {
			return fmt.Errorf("%w: no client", ErrHealthcheckFailed)
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}

		stats := client.PoolStats()
		if stats == nil {
			return nil
		}
		prev := seen.Swap(stats.Timeouts)
		if stats.Timeouts > prev && stats.IdleConns == 0 {
			return fmt.Errorf("%w: pool exhausted, %d connection waits timed out",
				ErrHealthcheckFailed, stats.Timeouts-prev)
		}
		return nil
	}
}
