package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/herald/pkg/logger"
	"github.com/dmitrymomot/herald/pkg/store"
)

// Config holds scheduler settings, populated from environment variables.
type Config struct {
	Interval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"60s"`
	Lease    time.Duration `env:"SCHEDULER_LEASE" envDefault:"5m"`
	Workers  int           `env:"SCHEDULER_WORKERS" envDefault:"4"`
}

// Claimer is the part of the record store the scheduler needs.
type Claimer interface {
	ClaimDueBroadcasts(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]store.Broadcast, error)
}

// Dispatcher starts delivery of claimed broadcasts.
type Dispatcher interface {
	// Available returns how many more broadcasts can be accepted right now.
	Available() int
	Dispatch(ctx context.Context, b store.Broadcast) error
}

// Scheduler periodically claims due broadcasts.
type Scheduler struct {
	store      Claimer
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time
	interval   time.Duration
	lease      time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the tick interval.
// Default: 60s
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLease sets how long a claimed broadcast is held before it may be reclaimed.
// Default: 5m
func WithLease(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lease = d
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithClock overrides the clock used to decide which broadcasts are due.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler.
func New(st Claimer, d Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      st,
		dispatcher: d,
		logger:     logger.NewNope(),
		now:        time.Now,
		interval:   time.Minute,
		lease:      5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick claims up to the dispatcher's free capacity and dispatches each
// claimed broadcast. It returns the number dispatched.
// A broadcast that fails to dispatch stays sending and is reclaimed once its
// lease expires.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	free := s.dispatcher.Available()
	if free <= 0 {
		return 0, nil
	}

	claimed, err := s.store.ClaimDueBroadcasts(ctx, s.now(), free, s.lease)
	if err != nil {
		return 0, errors.Join(ErrClaimFailed, err)
	}

	n := 0
	for _, b := range claimed {
		if err := s.dispatcher.Dispatch(ctx, b); err != nil {
			s.logger.ErrorContext(ctx, "failed to dispatch broadcast",
				slog.String("broadcast_id", b.ID),
				slog.Any("error", err),
			)
			continue
		}
		n++
	}
	if len(claimed) > 0 {
		s.logger.InfoContext(ctx, "claimed due broadcasts",
			slog.Int("claimed", len(claimed)),
			slog.Int("dispatched", n),
		)
	}
	return n, nil
}

// Run ticks until ctx is done. Tick errors are logged and retried on the
// next interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "broadcast scheduler started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "scheduler tick failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "broadcast scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}
