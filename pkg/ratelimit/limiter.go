package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/herald/pkg/logger"
)

// Limiter implements fixed-window rate limiting over a shared Counter.
type Limiter struct {
	counter Counter
	logger  *slog.Logger
	now     func() time.Time
	prefix  string
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger used to report counter failures.
func WithLogger(l *slog.Logger) Option {
	return func(lim *Limiter) {
		lim.logger = l
	}
}

// WithPrefix sets the key prefix. Default: "ratelimit".
func WithPrefix(prefix string) Option {
	return func(lim *Limiter) {
		lim.prefix = prefix
	}
}

// WithClock overrides the clock used to compute window buckets.
func WithClock(now func() time.Time) Option {
	return func(lim *Limiter) {
		lim.now = now
	}
}

// New creates a Limiter.
func New(counter Counter, opts ...Option) *Limiter {
	lim := &Limiter{
		counter: counter,
		logger:  logger.NewNope(),
		now:     time.Now,
		prefix:  "ratelimit",
	}
	for _, opt := range opts {
		opt(lim)
	}
	return lim
}

// Allow counts one call for subject in the current window and reports whether
// the count is within limit. It returns the count after the increment.
// Counter failures reject the call.
func (l *Limiter) Allow(ctx context.Context, subject string, limit int, window time.Duration) (bool, int64) {
	if window < time.Millisecond {
		l.logger.WarnContext(ctx, "rate limit check rejected",
			slog.String("subject", subject),
			slog.Any("error", ErrInvalidWindow),
		)
		return false, 0
	}
	if limit <= 0 {
		return false, 0
	}

	count, err := l.counter.Incr(ctx, l.key(subject, window), window)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limit counter unavailable",
			slog.String("subject", subject),
			slog.Any("error", errors.Join(ErrCounterFailed, err)),
		)
		return false, 0
	}
	return count <= int64(limit), count
}

func (l *Limiter) key(subject string, window time.Duration) string {
	bucket := l.now().UnixMilli() / window.Milliseconds()
	return strings.Join([]string{l.prefix, subject, strconv.FormatInt(bucket, 10)}, ":")
}
