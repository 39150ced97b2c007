package internal

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// RunOption configures App.Run.
type RunOption func(*runConfig)

type hook = func(context.Context) error

type runConfig struct {
	baseCtx         context.Context
	logger          *slog.Logger
	address         string
	startup         []hook
	shutdown        []hook
	shutdownTimeout time.Duration
}

// Address overrides the address passed to Run.
func Address(addr string) RunOption {
	return func(c *runConfig) {
		if addr != "" {
			c.address = addr
		}
	}
}

// Logger replaces the app logger for server lifecycle messages.
func Logger(l *slog.Logger) RunOption {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// ShutdownTimeout bounds draining plus all shutdown hooks. Default 30s.
func ShutdownTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// StartupHook runs fn before the listener opens. An error aborts Run.
// fn gets a context that is not cancelled by shutdown signals.
func StartupHook(fn func(context.Context) error) RunOption {
	return func(c *runConfig) {
		if fn != nil {
			c.startup = append(c.startup, fn)
		}
	}
}

// ShutdownHook runs fn after the server has drained, in registration order.
func ShutdownHook(fn func(context.Context) error) RunOption {
	return func(c *runConfig) {
		if fn != nil {
			c.shutdown = append(c.shutdown, fn)
		}
	}
}

// WithContext sets the context whose cancellation, like SIGINT or SIGTERM,
// stops Run.
func WithContext(ctx context.Context) RunOption {
	return func(c *runConfig) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}

// Run serves on addr until a signal or the base context ends it. Job
// workers, when attached, start before the listener and stop before the
// other shutdown hooks so they never outlive the pools those hooks close.
func (a *App) Run(addr string, opts ...RunOption) error {
	cfg := runConfig{
		baseCtx:         context.Background(),
		logger:          a.logger,
		address:         addr,
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.address == "" {
		cfg.address = ":8080"
	}
	if a.manager != nil {
		cfg.startup = append([]hook{a.manager.StartFunc()}, cfg.startup...)
		cfg.shutdown = append([]hook{a.manager.Shutdown()}, cfg.shutdown...)
	}
	return serve(a.router, cfg)
}

func serve(h http.Handler, cfg runConfig) error {
	log := cfg.logger

	ctx, stop := signal.NotifyContext(cfg.baseCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Workers started here must live until their shutdown hook runs.
	hookCtx := context.WithoutCancel(cfg.baseCtx)
	for _, fn := range cfg.startup {
		if err := fn(hookCtx); err != nil {
			log.Error("startup hook failed", slog.Any("error", err))
			return err
		}
	}

	ln, err := net.Listen("tcp", cfg.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("http server shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()

	errs := []error{srv.Shutdown(sctx)}
	for _, fn := range cfg.shutdown {
		if err := fn(sctx); err != nil {
			log.Error("shutdown hook failed", slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Info("http server stopped")
	return nil
}
