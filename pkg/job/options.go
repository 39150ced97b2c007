package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

type periodic struct {
	name     string
	schedule string
	run      func(context.Context) error
}

type config struct {
	logger     *slog.Logger
	tasks      map[string]runFunc
	queues     map[string]int
	periodic   []periodic
	maxWorkers int
}

// Option configures a Manager.
type Option func(*config)

// WithTask registers a task. Any type with Name() and Handle(ctx, P) works;
// P is inferred and the JSON payload is decoded into it.
//
//	job.WithTask(tasks.NewDeliverBroadcast(engine))
func WithTask[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}](task T) Option {
	return func(c *config) {
		c.tasks[task.Name()] = typedRun(task.Handle)
	}
}

// WithScheduledTask registers a task River enqueues on a cron schedule.
//
//	job.WithScheduledTask(tasks.NewSweepJobTimeouts(dispatcher, "@every 1m"))
func WithScheduledTask[T interface {
	Name() string
	Schedule() string
	Handle(context.Context) error
}](task T) Option {
	return func(c *config) {
		c.periodic = append(c.periodic, periodic{
			name:     task.Name(),
			schedule: task.Schedule(),
			run:      task.Handle,
		})
	}
}

// WithQueue adds a named queue worked by up to workers goroutines.
func WithQueue(name string, workers int) Option {
	return func(c *config) {
		if name != "" && workers > 0 {
			c.queues[name] = workers
		}
	}
}

// WithMaxWorkers sizes the default queue. Default 100.
func WithMaxWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// EnqueueOption tunes a single insert.
type EnqueueOption func(*insert)

type insert struct {
	opts      river.InsertOpts
	uniqueKey string
}

// InQueue routes the job to a queue registered with WithQueue.
func InQueue(name string) EnqueueOption {
	return func(i *insert) { i.opts.Queue = name }
}

// MaxAttempts caps River's retries of a failing job. Default 25.
func MaxAttempts(n int) EnqueueOption {
	return func(i *insert) {
		if n > 0 {
			i.opts.MaxAttempts = n
		}
	}
}

// UniqueFor drops inserts that duplicate a job inserted within d. Jobs
// compare equal by task name and UniqueKey.
func UniqueFor(d time.Duration) EnqueueOption {
	return func(i *insert) {
		if d > 0 {
			i.opts.UniqueOpts = river.UniqueOpts{ByArgs: true, ByPeriod: d}
		}
	}
}

// UniqueKey narrows UniqueFor to one entity, e.g. a broadcast ID. It has no
// effect without UniqueFor.
func UniqueKey(key string) EnqueueOption {
	return func(i *insert) { i.uniqueKey = key }
}
