package internal

import (
	"log/slog"

	"github.com/dmitrymomot/herald/pkg/health"
	"github.com/dmitrymomot/herald/pkg/job"
	"github.com/dmitrymomot/herald/pkg/logger"
)

// Option configures an App.
type Option func(*App)

// WithMiddleware appends global middleware. The first one runs outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(a *App) { a.middlewares = append(a.middlewares, mw...) }
}

func WithHandlers(h ...Handler) Option {
	return func(a *App) { a.handlers = append(a.handlers, h...) }
}

// WithErrorHandler renders errors returned by handlers and middleware.
// Without it, HTTPErrors become plain-text responses and anything else a 500.
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) { a.errorHandler = h }
}

func WithNotFoundHandler(h HandlerFunc) Option {
	return func(a *App) { a.notFound = h }
}

func WithMethodNotAllowedHandler(h HandlerFunc) Option {
	return func(a *App) { a.notAllowed = h }
}

// WithLogger builds the app logger from cfg and tags it with component.
func WithLogger(component string, cfg logger.Config, extractors ...logger.ContextExtractor) Option {
	return func(a *App) {
		a.logger = logger.New(cfg, extractors...).With("component", component)
	}
}

func WithCustomLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithBodyLimit caps bodies read through Context.Body and BindJSON.
func WithBodyLimit(n int64) Option {
	return func(a *App) {
		if n > 0 {
			a.bodyLimit = n
		}
	}
}

// WithJobManager lets handlers enqueue through m and makes Run start its
// workers before listening and stop them after the server drains.
func WithJobManager(m *job.Manager) Option {
	return func(a *App) {
		if m != nil {
			a.manager, a.jobs = m, m
		}
	}
}

// WithJobEnqueuer lets handlers enqueue jobs that workers elsewhere process.
// A job manager, when also set, takes precedence.
func WithJobEnqueuer(e *job.Enqueuer) Option {
	return func(a *App) {
		if e != nil && a.manager == nil {
			a.jobs = e
		}
	}
}

type healthConfig struct {
	checks        health.Checks
	livenessPath  string
	readinessPath string
	optional      []string
}

// HealthOption configures the health endpoints.
type HealthOption func(*healthConfig)

// WithHealthChecks serves /health/live and /health/ready.
//
//	herald.WithHealthChecks(
//	    herald.WithReadinessCheck("postgres", db.Healthcheck(pool)),
//	    herald.WithOptionalReadinessCheck("redis", redis.Healthcheck(client)),
//	)
func WithHealthChecks(opts ...HealthOption) Option {
	return func(a *App) {
		hc := &healthConfig{
			checks:        health.Checks{},
			livenessPath:  "/health/live",
			readinessPath: "/health/ready",
		}
		for _, opt := range opts {
			opt(hc)
		}
		a.health = hc
	}
}

func WithLivenessPath(path string) HealthOption {
	return func(hc *healthConfig) {
		if path != "" {
			hc.livenessPath = path
		}
	}
}

func WithReadinessPath(path string) HealthOption {
	return func(hc *healthConfig) {
		if path != "" {
			hc.readinessPath = path
		}
	}
}

// WithReadinessCheck adds a check that must pass for the service to be ready.
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return func(hc *healthConfig) { hc.checks[name] = fn }
}

// WithOptionalReadinessCheck adds a check whose failure only reports the
// service as degraded.
func WithOptionalReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return func(hc *healthConfig) {
		hc.checks[name] = fn
		hc.optional = append(hc.optional, name)
	}
}
