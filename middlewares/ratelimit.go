package middlewares

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/dmitrymomot/herald/internal"
)

// Allower is satisfied by *ratelimit.Limiter.
type Allower interface {
	Allow(ctx context.Context, subject string, limit int, window time.Duration) (bool, int64)
}

// RateLimitConfig configures the rate limit middleware.
type RateLimitConfig struct {
	Key    func(c internal.Context) string
	Limit  int
	Window time.Duration
}

// RateLimitOption configures RateLimitConfig.
type RateLimitOption func(*RateLimitConfig)

// WithRateLimitKey sets how requests are grouped. Defaults to the client IP.
func WithRateLimitKey(fn func(c internal.Context) string) RateLimitOption {
	return func(cfg *RateLimitConfig) {
		if fn != nil {
			cfg.Key = fn
		}
	}
}

// RateLimit rejects requests beyond limit per window with 429. It shares the
// fixed-window counter used by the delivery engine, so limits hold across
// every API replica when the limiter is Redis-backed.
func RateLimit(l Allower, limit int, window time.Duration, opts ...RateLimitOption) internal.Middleware {
	cfg := &RateLimitConfig{
		Key:    clientIP,
		Limit:  limit,
		Window: window,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			ok, count := l.Allow(c, "http:"+cfg.Key(c), cfg.Limit, cfg.Window)
			c.SetHeader("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			if !ok {
				c.SetHeader("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				c.LogWarn("rate limit exceeded", "count", count)
				return internal.ErrTooManyRequests("rate limit exceeded")
			}
			return next(c)
		}
	}
}

func clientIP(c internal.Context) string {
	host, _, err := net.SplitHostPort(c.Request().RemoteAddr)
	if err != nil {
		return c.Request().RemoteAddr
	}
	return host
}
