package middlewares

import (
	"fmt"
	"runtime"

	"github.com/dmitrymomot/herald/internal"
)

// PanicError is returned by Recover in place of a handler panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

type recoverConfig struct {
	stackSize int
}

// RecoverOption configures Recover.
type RecoverOption func(*recoverConfig)

// WithStackSize bounds the captured stack trace. Zero disables capture.
func WithStackSize(n int) RecoverOption {
	return func(cfg *recoverConfig) {
		cfg.stackSize = n
	}
}

// Recover converts a handler panic into a *PanicError so the error handler
// answers with a 500 and the server keeps serving.
func Recover(opts ...RecoverOption) internal.Middleware {
	cfg := recoverConfig{stackSize: 4 << 10}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) (err error) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				pe := &PanicError{Value: v}
				attrs := []any{"panic", v, "path", c.Request().URL.Path}
				if cfg.stackSize > 0 {
					buf := make([]byte, cfg.stackSize)
					pe.Stack = buf[:runtime.Stack(buf, false)]
					attrs = append(attrs, "stack", string(pe.Stack))
				}
				c.LogError("handler panicked", attrs...)
				err = pe
			}()
			return next(c)
		}
	}
}
