package middlewares

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/herald/internal"
)

// TimeoutError is returned by Timeout when the handler overruns its budget.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s", e.After)
}

type deadlineKey struct{}

// Timeout bounds handler run time. On expiry the request is answered through
// the error handler with a *TimeoutError while the handler goroutine is left
// to observe RequestContext(c).Done() and return.
func Timeout(d time.Duration) internal.Middleware {
	if d <= 0 {
		d = 30 * time.Second
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			ctx, cancel := context.WithTimeout(c.Context(), d)
			defer cancel()
			c.Set(deadlineKey{}, ctx)

			done := make(chan error, 1)
			go func() {
				// A panic here would escape Recover, which runs on the caller's goroutine.
				defer func() {
					if v := recover(); v != nil {
						done <- &PanicError{Value: v}
					}
				}()
				done <- next(c)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					c.LogWarn("request timed out", "after", d.String())
					return &TimeoutError{After: d}
				}
				return ctx.Err()
			}
		}
	}
}

// RequestContext returns the deadline-bound context installed by Timeout,
// or the plain request context when Timeout is not in the chain.
func RequestContext(c internal.Context) context.Context {
	if ctx, ok := c.Get(deadlineKey{}).(context.Context); ok {
		return ctx
	}
	return c.Context()
}
