package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects level, format and the optional Sentry sink.
type Config struct {
	Level  string       `env:"LOG_LEVEL" envDefault:"info"`
	Format string       `env:"LOG_FORMAT" envDefault:"json"`
	Sentry SentryConfig `envPrefix:""`
}

// New creates a logger writing to stdout. When cfg.Sentry.DSN is set,
// warnings and errors are forwarded to Sentry as well.
func New(cfg Config, extractors ...ContextExtractor) *slog.Logger {
	return newLogger(os.Stdout, cfg, extractors...)
}

func newLogger(w io.Writer, cfg Config, extractors ...ContextExtractor) *slog.Logger {
	base := newBaseHandler(w, cfg)
	sinks := []slog.Handler{base}
	if sentryHandler, ok := newSentryHandler(cfg.Sentry, base); ok {
		sinks = append(sinks, sentryHandler)
	}
	// Context attrs always come first so every record carries broadcast and job ids.
	return slog.New(newHandler(sinks, append([]ContextExtractor{contextAttrs}, extractors...)...))
}

func newBaseHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ParseLevel maps debug, info, warn and error to slog levels; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
