package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/herald/pkg/logger"
)

const defaultTimeout = 5 * time.Second

// Readiness and per-check statuses. Degraded means only optional checks failed.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// CheckFunc matches the Healthcheck closures exposed by db, redis and job.
type CheckFunc func(ctx context.Context) error

// Checks maps a dependency name to its check.
type Checks map[string]CheckFunc

// Response is the aggregated readiness result.
type Response struct {
	Status string           `json:"status"`
	Checks map[string]Check `json:"checks,omitempty"`
}

// Check is the outcome of a single named check.
type Check struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	TookMS   int64  `json:"took_ms"`
}

type config struct {
	logger   *slog.Logger
	optional map[string]bool
	timeout  time.Duration
}

// Option configures health check behavior.
type Option func(*config)

// WithTimeout sets the timeout shared by all checks.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used to report failing checks.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOptional marks checks whose failure degrades but does not fail readiness.
func WithOptional(names ...string) Option {
	return func(c *config) {
		for _, n := range names {
			c.optional[n] = true
		}
	}
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		timeout:  defaultTimeout,
		logger:   logger.NewNope(),
		optional: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Run executes checks concurrently and aggregates the result.
func Run(ctx context.Context, checks Checks, opts ...Option) *Response {
	return runChecks(ctx, checks, newConfig(opts...))
}

func runChecks(ctx context.Context, checks Checks, cfg *config) *Response {
	resp := &Response{Status: StatusHealthy}
	if len(checks) == 0 {
		return resp
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	names := slices.Sorted(maps.Keys(checks))
	out := make([]Check, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			out[i] = runCheck(ctx, name, checks[name], cfg)
			return nil
		})
	}
	_ = g.Wait()

	resp.Checks = make(map[string]Check, len(names))
	for i, name := range names {
		c := out[i]
		resp.Checks[name] = c
		switch {
		case c.Status == StatusHealthy:
		case !c.Optional:
			resp.Status = StatusUnhealthy
		case resp.Status == StatusHealthy:
			resp.Status = StatusDegraded
		}
	}
	return resp
}

func runCheck(ctx context.Context, name string, check CheckFunc, cfg *config) Check {
	start := time.Now()
	err := check(ctx)
	c := Check{
		Status:   StatusHealthy,
		Optional: cfg.optional[name],
		TookMS:   time.Since(start).Milliseconds(),
	}
	if err == nil {
		return c
	}

	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		err = ErrCheckTimeout
	}
	c.Status = StatusUnhealthy
	c.Error = err.Error()
	cfg.logger.WarnContext(ctx, "health check failed",
		slog.String("check", name),
		slog.Bool("optional", c.Optional),
		slog.Int64("took_ms", c.TookMS),
		slog.String("error", c.Error),
	)
	return c
}

// Err is nil unless a required check failed. The error names each failing
// required check.
func (r *Response) Err() error {
	if r.Status != StatusUnhealthy {
		return nil
	}
	errs := []error{ErrCheckFailed}
	for _, name := range slices.Sorted(maps.Keys(r.Checks)) {
		if c := r.Checks[name]; c.Status == StatusUnhealthy && !c.Optional {
			errs = append(errs, fmt.Errorf("%s: %s", name, c.Error))
		}
	}
	return errors.Join(errs...)
}
