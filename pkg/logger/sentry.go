package logger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// ErrFlushTimeout is returned when buffered Sentry events were not sent in time.
var ErrFlushTimeout = errors.New("logger: sentry flush timed out")

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	// MinLevel is "warn" to ship warnings as breadcrumbs or "error" for errors only.
	MinLevel string `env:"SENTRY_MIN_LEVEL" envDefault:"warn"`
}

// newSentryHandler reports false when Sentry is not configured or fails to
// initialise; the caller keeps logging to stdout either way.
func newSentryHandler(cfg SentryConfig, fallback slog.Handler) (slog.Handler, bool) {
	if cfg.DSN == "" {
		return nil, false
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		EnableLogs:  true,
	}); err != nil {
		slog.New(fallback).Error("failed to initialize Sentry", slog.String("error", err.Error()))
		return nil, false
	}

	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if ParseLevel(cfg.MinLevel) == slog.LevelError {
		logLevel = []slog.Level{slog.LevelError}
	}

	return sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError}, // errors open issues
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background()), true
}

// Flush waits for buffered Sentry events until ctx is done.
// It is a no-op when Sentry was never initialised.
func Flush(ctx context.Context) error {
	if sentry.CurrentHub().Client() == nil {
		return nil
	}
	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !sentry.Flush(timeout) {
		return ErrFlushTimeout
	}
	return nil
}
