package delivery

import (
	"log/slog"
	"time"
)

// Config holds engine tuning, populated from environment variables.
type Config struct {
	BatchSize      int           `env:"DELIVERY_BATCH_SIZE" envDefault:"30"`
	Concurrency    int           `env:"DELIVERY_CONCURRENCY" envDefault:"10"`
	MaxRetries     int           `env:"DELIVERY_MAX_RETRIES" envDefault:"3"`
	BackoffInitial time.Duration `env:"DELIVERY_BACKOFF_INITIAL" envDefault:"1s"`
	BackoffMax     time.Duration `env:"DELIVERY_BACKOFF_MAX" envDefault:"30s"`
	SendTimeout    time.Duration `env:"DELIVERY_SEND_TIMEOUT" envDefault:"10s"`
	Lease          time.Duration `env:"DELIVERY_LEASE" envDefault:"5m"`

	// Shared cap across all instances, checked before every send.
	RateSubject string        `env:"DELIVERY_RATE_SUBJECT" envDefault:"telegram"`
	RateLimit   int           `env:"DELIVERY_RATE_LIMIT" envDefault:"25"`
	RateWindow  time.Duration `env:"DELIVERY_RATE_WINDOW" envDefault:"1s"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig applies every non-zero field of cfg.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		if cfg.BatchSize > 0 {
			e.batchSize = cfg.BatchSize
		}
		if cfg.Concurrency > 0 {
			e.concurrency = cfg.Concurrency
		}
		if cfg.MaxRetries > 0 {
			e.maxRetries = cfg.MaxRetries
		}
		if cfg.BackoffInitial > 0 || cfg.BackoffMax > 0 {
			e.backoff = ExponentialBackoff{Initial: cfg.BackoffInitial, Max: cfg.BackoffMax}
		}
		if cfg.SendTimeout > 0 {
			e.sendTimeout = cfg.SendTimeout
		}
		if cfg.Lease > 0 {
			e.lease = cfg.Lease
		}
		if cfg.RateLimit > 0 && cfg.RateWindow > 0 {
			e.rateSubject = cfg.RateSubject
			e.rateLimit = cfg.RateLimit
			e.rateWindow = cfg.RateWindow
		}
	}
}

// WithBatchSize sets how many recipients are processed between cancellation checks.
// Default: 30
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithConcurrency bounds parallel sends within a batch.
// Default: 10
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithMaxRetries sets the number of failed attempts after which a delivery is failed.
// Default: 3
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithBackoff sets the delay policy between attempts.
func WithBackoff(b ExponentialBackoff) Option {
	return func(e *Engine) {
		e.backoff = b
	}
}

// WithSendTimeout bounds a single channel call.
// Default: 10s
func WithSendTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.sendTimeout = d
		}
	}
}

// WithLease sets how long a claim stays valid without renewal.
// Default: 5m
func WithLease(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lease = d
		}
	}
}

// WithRateLimit sets the shared cap checked before every send.
func WithRateLimit(subject string, limit int, window time.Duration) Option {
	return func(e *Engine) {
		e.rateSubject = subject
		e.rateLimit = limit
		e.rateWindow = window
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock overrides the clock used for leases and backoff deadlines.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}
