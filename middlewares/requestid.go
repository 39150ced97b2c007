package middlewares

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/herald/internal"
	"github.com/dmitrymomot/herald/pkg/logger"
)

type requestIDKey struct{}

type requestIDConfig struct {
	generate func() string
	echo     string
	sources  []string
}

// RequestIDOption configures RequestID.
type RequestIDOption func(*requestIDConfig)

// WithRequestIDHeaders replaces the inbound headers searched for an ID.
// The first non-empty one wins.
func WithRequestIDHeaders(headers ...string) RequestIDOption {
	return func(cfg *requestIDConfig) {
		cfg.sources = headers
	}
}

// WithRequestIDGenerator replaces uuid.NewString for new IDs.
func WithRequestIDGenerator(gen func() string) RequestIDOption {
	return func(cfg *requestIDConfig) {
		cfg.generate = gen
	}
}

// WithRequestIDResponseHeader names the response header that echoes the ID.
func WithRequestIDResponseHeader(header string) RequestIDOption {
	return func(cfg *requestIDConfig) {
		cfg.echo = header
	}
}

// RequestID tags each request with an ID. An ID sent by the caller, for
// example a compute provider retrying a callback, is kept so both sides can
// correlate logs.
func RequestID(opts ...RequestIDOption) internal.Middleware {
	cfg := requestIDConfig{
		generate: uuid.NewString,
		echo:     "X-Request-ID",
		sources:  []string{"X-Request-ID", "X-Correlation-ID"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			id := ""
			for _, h := range cfg.sources {
				if id = c.Header(h); id != "" {
					break
				}
			}
			if id == "" {
				id = cfg.generate()
			}
			c.Set(requestIDKey{}, id)
			c.SetHeader(cfg.echo, id)
			return next(c)
		}
	}
}

// GetRequestID returns the ID set by RequestID, or "".
func GetRequestID(c internal.Context) string {
	id, _ := c.Get(requestIDKey{}).(string)
	return id
}

// RequestIDExtractor adds "request_id" to every log record written with the
// request context.
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id, _ := ctx.Value(requestIDKey{}).(string)
		return slog.String("request_id", id), id != ""
	}
}
