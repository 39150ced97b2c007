package tasks

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/herald/pkg/job"
	"github.com/dmitrymomot/herald/pkg/logger"
)

// Task names.
const (
	TaskDeliverBroadcast = "deliver_broadcast"
	TaskRetryFailed      = "retry_failed"
	TaskDeliverJobResult = "deliver_job_result"
	TaskDispatchDue      = "dispatch_due"
	TaskSweepJobs        = "sweep_job_timeouts"
)

// Queue names.
const (
	QueueBroadcasts = "broadcasts"
	QueueResults    = "results"
)

const defaultSchedule = "@every 1m"

// Enqueuer is satisfied by *job.Manager and *job.Enqueuer.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, opts ...job.EnqueueOption) error
}

// BroadcastPayload identifies the broadcast a task works on.
// ClaimID pins a delivery task to the claim that enqueued it.
type BroadcastPayload struct {
	BroadcastID string `json:"broadcast_id"`
	ClaimID     string `json:"claim_id,omitempty"`
}

// JobResultPayload identifies the compute job whose result is delivered.
type JobResultPayload struct {
	JobID string `json:"job_id"`
}

// Option configures a task.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the task logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: logger.NewNope()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
