package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/herald/pkg/compute"
	"github.com/dmitrymomot/herald/pkg/job"
	"github.com/dmitrymomot/herald/pkg/logger"
	"github.com/dmitrymomot/herald/pkg/store"
)

// DeliverJobResult sends a succeeded compute job's result to its requester.
type DeliverJobResult struct {
	results compute.ResultDeliverer
	logger  *slog.Logger
}

func NewDeliverJobResult(results compute.ResultDeliverer, opts ...Option) *DeliverJobResult {
	o := newOptions(opts)
	return &DeliverJobResult{results: results, logger: o.logger}
}

func (t *DeliverJobResult) Name() string { return TaskDeliverJobResult }

func (t *DeliverJobResult) Handle(ctx context.Context, p JobResultPayload) error {
	ctx = logger.WithAttrs(ctx, slog.String("job_id", p.JobID))

	res, err := t.results.DeliverResult(ctx, p.JobID)
	switch {
	case err == nil:
		t.logger.DebugContext(ctx, "job result task done",
			slog.String("status", string(res.Status)),
			slog.Int("attempts", res.Attempts),
		)
		return nil
	case errors.Is(err, compute.ErrJobNotSucceeded), errors.Is(err, store.ErrNotFound):
		t.logger.WarnContext(ctx, "job result not deliverable", slog.Any("error", err))
		return nil
	}
	return err
}

// resultAttempts bounds redelivery of a result whose send keeps failing
// with a transient error.
const resultAttempts = 10

// ResultNotifier queues result delivery instead of sending inside the
// callback request. It implements compute.ResultNotifier.
type ResultNotifier struct {
	jobs Enqueuer
}

func NewResultNotifier(jobs Enqueuer) *ResultNotifier {
	return &ResultNotifier{jobs: jobs}
}

func (n *ResultNotifier) NotifyResult(ctx context.Context, j store.Job) error {
	return n.jobs.Enqueue(ctx, TaskDeliverJobResult, JobResultPayload{JobID: j.ID},
		job.InQueue(QueueResults),
		job.UniqueKey(j.ID),
		job.UniqueFor(time.Hour),
		job.MaxAttempts(resultAttempts),
	)
}

// Ticker claims due broadcasts. Implemented by *scheduler.Scheduler.
type Ticker interface {
	Tick(ctx context.Context) (int, error)
}

// DispatchDue is the periodic scheduler tick.
type DispatchDue struct {
	ticker   Ticker
	schedule string
	logger   *slog.Logger
}

// NewDispatchDue creates the tick task. An empty schedule runs every minute.
func NewDispatchDue(ticker Ticker, schedule string, opts ...Option) *DispatchDue {
	if schedule == "" {
		schedule = defaultSchedule
	}
	o := newOptions(opts)
	return &DispatchDue{ticker: ticker, schedule: schedule, logger: o.logger}
}

func (t *DispatchDue) Name() string     { return TaskDispatchDue }
func (t *DispatchDue) Schedule() string { return t.schedule }

func (t *DispatchDue) Handle(ctx context.Context) error {
	n, err := t.ticker.Tick(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		t.logger.DebugContext(ctx, "due broadcasts dispatched", slog.Int("count", n))
	}
	return nil
}

// Sweeper fails compute jobs that outlived their timeout.
// Implemented by *compute.Dispatcher.
type Sweeper interface {
	SweepTimeouts(ctx context.Context, now time.Time) (int, error)
}

// SweepJobTimeouts periodically fails stale compute jobs.
type SweepJobTimeouts struct {
	sweeper  Sweeper
	schedule string
	logger   *slog.Logger
}

// NewSweepJobTimeouts creates the sweep task. An empty schedule runs every minute.
func NewSweepJobTimeouts(sweeper Sweeper, schedule string, opts ...Option) *SweepJobTimeouts {
	if schedule == "" {
		schedule = defaultSchedule
	}
	o := newOptions(opts)
	return &SweepJobTimeouts{sweeper: sweeper, schedule: schedule, logger: o.logger}
}

func (t *SweepJobTimeouts) Name() string     { return TaskSweepJobs }
func (t *SweepJobTimeouts) Schedule() string { return t.schedule }

func (t *SweepJobTimeouts) Handle(ctx context.Context) error {
	n, err := t.sweeper.SweepTimeouts(ctx, time.Time{})
	if err != nil {
		return err
	}
	if n > 0 {
		t.logger.WarnContext(ctx, "stale jobs failed", slog.Int("count", n))
	}
	return nil
}
