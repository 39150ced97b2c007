package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/herald/pkg/delivery"
	"github.com/dmitrymomot/herald/pkg/job"
	"github.com/dmitrymomot/herald/pkg/logger"
	"github.com/dmitrymomot/herald/pkg/store"
)

// BroadcastEngine runs delivery passes. Implemented by *delivery.Engine.
type BroadcastEngine interface {
	DeliverBroadcast(ctx context.Context, broadcastID, claimID string) (delivery.Report, error)
	RetryFailed(ctx context.Context, broadcastID string) (delivery.Report, error)
}

// DeliverBroadcast runs a claimed broadcast to completion.
type DeliverBroadcast struct {
	engine BroadcastEngine
	logger *slog.Logger
}

func NewDeliverBroadcast(engine BroadcastEngine, opts ...Option) *DeliverBroadcast {
	o := newOptions(opts)
	return &DeliverBroadcast{engine: engine, logger: o.logger}
}

func (t *DeliverBroadcast) Name() string { return TaskDeliverBroadcast }

// Handle returns an error only when the pass stopped early with the
// broadcast still sending, so the job is retried. Duplicate tasks for a
// finished broadcast, and tasks whose claim was taken over, are dropped.
func (t *DeliverBroadcast) Handle(ctx context.Context, p BroadcastPayload) error {
	ctx = logger.WithAttrs(ctx, slog.String("broadcast_id", p.BroadcastID))

	report, err := t.engine.DeliverBroadcast(ctx, p.BroadcastID, p.ClaimID)
	switch {
	case err == nil:
		t.logger.InfoContext(ctx, "broadcast delivered",
			slog.String("status", string(report.Status)),
			slog.Int("sent", report.Sent),
		)
		return nil
	case errors.Is(err, delivery.ErrBroadcastInactive):
		t.logger.DebugContext(ctx, "broadcast no longer sending", slog.String("status", string(report.Status)))
		return nil
	case errors.Is(err, delivery.ErrLeaseLost):
		t.logger.WarnContext(ctx, "broadcast claimed by another pass", slog.Int("sent", report.Sent))
		return nil
	case errors.Is(err, store.ErrNotFound):
		t.logger.WarnContext(ctx, "broadcast not found")
		return nil
	}
	return err
}

// RetryFailed reopens and resends the failed deliveries of a finished broadcast.
type RetryFailed struct {
	engine BroadcastEngine
	logger *slog.Logger
}

func NewRetryFailed(engine BroadcastEngine, opts ...Option) *RetryFailed {
	o := newOptions(opts)
	return &RetryFailed{engine: engine, logger: o.logger}
}

func (t *RetryFailed) Name() string { return TaskRetryFailed }

// Handle drops retries of broadcasts that are still sending. A retry that
// finds another retry pass running returns its error, so River tries again
// once that pass ended or its lease expired.
func (t *RetryFailed) Handle(ctx context.Context, p BroadcastPayload) error {
	ctx = logger.WithAttrs(ctx, slog.String("broadcast_id", p.BroadcastID))

	report, err := t.engine.RetryFailed(ctx, p.BroadcastID)
	switch {
	case err == nil:
		t.logger.InfoContext(ctx, "failed deliveries retried",
			slog.Int("total", report.Total),
			slog.Int("sent", report.Sent),
			slog.Int("failed", report.Failed),
		)
		return nil
	case errors.Is(err, delivery.ErrBroadcastBusy), errors.Is(err, store.ErrNotFound):
		t.logger.WarnContext(ctx, "retry skipped", slog.Any("error", err))
		return nil
	}
	return err
}

// RetryQueue schedules retry-failed passes as background jobs.
type RetryQueue struct {
	jobs Enqueuer
}

func NewRetryQueue(jobs Enqueuer) *RetryQueue {
	return &RetryQueue{jobs: jobs}
}

// ScheduleRetry enqueues one retry pass. Repeated calls within a minute
// collapse into the same job.
func (q *RetryQueue) ScheduleRetry(ctx context.Context, broadcastID string) error {
	return q.jobs.Enqueue(ctx, TaskRetryFailed, BroadcastPayload{BroadcastID: broadcastID},
		job.InQueue(QueueBroadcasts),
		job.UniqueKey(broadcastID),
		job.UniqueFor(time.Minute),
	)
}

// QueueDispatcher hands claimed broadcasts to the deliver_broadcast task.
// It lets several scheduler processes share the River workers instead of
// delivering in the claiming process.
type QueueDispatcher struct {
	jobs     Enqueuer
	capacity int
	lease    time.Duration
}

// NewQueueDispatcher creates a dispatcher that claims at most capacity
// broadcasts per tick. lease bounds deduplication of repeated dispatches.
func NewQueueDispatcher(jobs Enqueuer, capacity int, lease time.Duration) *QueueDispatcher {
	if capacity <= 0 {
		capacity = 1
	}
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &QueueDispatcher{jobs: jobs, capacity: capacity, lease: lease}
}

// Available always reports the configured capacity; the queue absorbs bursts.
func (d *QueueDispatcher) Available() int {
	return d.capacity
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, b store.Broadcast) error {
	return d.jobs.Enqueue(ctx, TaskDeliverBroadcast, BroadcastPayload{BroadcastID: b.ID, ClaimID: b.ClaimID},
		job.InQueue(QueueBroadcasts),
		job.UniqueKey(b.ID+":"+b.ClaimID),
		job.UniqueFor(d.lease),
	)
}
