package internal

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/herald/pkg/health"
	"github.com/dmitrymomot/herald/pkg/job"
	"github.com/dmitrymomot/herald/pkg/logger"
)

// enqueuer is satisfied by both job.Manager and job.Enqueuer.
type enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, opts ...job.EnqueueOption) error
	EnqueueTx(ctx context.Context, tx pgx.Tx, name string, payload any, opts ...job.EnqueueOption) error
}

// App is herald's HTTP application: a chi router carrying Context-based
// handlers, the health endpoints and, optionally, the job workers whose
// lifetime it ties to the server. It must not be changed after New.
type App struct {
	router       chi.Router
	errorHandler ErrorHandler
	notFound     HandlerFunc
	notAllowed   HandlerFunc
	health       *healthConfig
	logger       *slog.Logger
	jobs         enqueuer
	manager      *job.Manager
	middlewares  []Middleware
	handlers     []Handler
	bodyLimit    int64
}

func New(opts ...Option) *App {
	a := &App{
		router:    chi.NewRouter(),
		logger:    logger.NewNope(),
		bodyLimit: DefaultBodyLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.mount()
	return a
}

// Router exposes the chi router, e.g. for mounting a plain http.Handler.
func (a *App) Router() chi.Router { return a.router }

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) { a.router.ServeHTTP(w, r) }

func (a *App) Logger() *slog.Logger { return a.logger }

func (a *App) mount() {
	if a.notFound != nil {
		a.router.NotFound(a.serve(a.notFound))
	}
	if a.notAllowed != nil {
		a.router.MethodNotAllowed(a.serve(a.notAllowed))
	}
	for _, mw := range a.middlewares {
		a.router.Use(a.chiMiddleware(mw))
	}

	if hc := a.health; hc != nil {
		a.router.Get(hc.livenessPath, health.LivenessHandler())
		a.router.Get(hc.readinessPath, health.ReadinessHandler(hc.checks,
			health.WithLogger(a.logger),
			health.WithOptional(hc.optional...),
		))
	}

	r := &router{mux: a.router, app: a}
	for _, h := range a.handlers {
		h.Routes(r)
	}
}

// serve adapts h to net/http, routing a returned error to the error handler.
func (a *App) serve(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := newContext(w, r, a)
		if err := h(c); err != nil {
			a.handleError(c, err)
		}
	}
}

// chiMiddleware runs mw inside chi's chain. The next handler sees the
// request as mw left it, including values stored with Context.Set.
func (a *App) chiMiddleware(mw Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return a.serve(mw(func(c Context) error {
			next.ServeHTTP(c.Response(), c.Request())
			return nil
		}))
	}
}

// handleError renders err unless a response is already on the wire.
func (a *App) handleError(c Context, err error) {
	if c.Written() {
		a.logger.WarnContext(c, "error after response was written", "error", err)
		return
	}
	if a.errorHandler != nil {
		if herr := a.errorHandler(c, err); herr != nil {
			a.logger.ErrorContext(c, "error handler failed", "error", herr, "cause", err)
		}
		return
	}
	code, msg := http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	if httpErr := AsHTTPError(err); httpErr != nil {
		code, msg = httpErr.Code, httpErr.Message
	}
	http.Error(c.Response(), msg, code)
}
