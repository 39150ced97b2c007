package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
)

// taskArgs is the only River job kind herald inserts. River's uniqueness
// looks at the fields tagged unique, so the payload never affects it.
type taskArgs struct {
	Task      string          `json:"task" river:"unique"`
	UniqueKey string          `json:"unique_key,omitempty" river:"unique"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (taskArgs) Kind() string { return "herald:task" }

// runFunc executes one task invocation with its raw payload.
type runFunc func(ctx context.Context, payload json.RawMessage) error

// typedRun decodes the payload into P before calling handle. An empty
// payload leaves P at its zero value.
func typedRun[P any](handle func(context.Context, P) error) runFunc {
	return func(ctx context.Context, raw json.RawMessage) error {
		var p P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				// Retrying cannot fix a payload that does not decode.
				return river.JobCancel(errors.Join(ErrInvalidPayload, err))
			}
		}
		return handle(ctx, p)
	}
}

// dispatcher is the River worker behind taskArgs. It looks up the task by name.
type dispatcher struct {
	river.WorkerDefaults[taskArgs]
	tasks  map[string]runFunc
	logger *slog.Logger
}

func (d *dispatcher) Work(ctx context.Context, j *river.Job[taskArgs]) error {
	run, ok := d.tasks[j.Args.Task]
	if !ok {
		return river.JobCancel(fmt.Errorf("%w: %s", ErrUnknownTask, j.Args.Task))
	}

	attrs := []any{
		slog.String("task", j.Args.Task),
		slog.Int64("river_job_id", j.ID),
		slog.Int("attempt", j.Attempt),
	}
	start := time.Now()
	if err := run(ctx, j.Args.Payload); err != nil {
		d.logger.ErrorContext(ctx, "task failed", append(attrs, slog.Any("error", err))...)
		return err
	}
	d.logger.DebugContext(ctx, "task done", append(attrs, slog.Duration("took", time.Since(start)))...)
	return nil
}

// cronSchedule adapts a robfig/cron schedule to river.PeriodicSchedule.
type cronSchedule struct{ cron.Schedule }

// parseSchedule accepts five-field cron expressions and descriptors such as
// "@hourly" or "@every 30s".
func parseSchedule(expr string) (river.PeriodicSchedule, error) {
	p := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s, err := p.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidCron, expr, err)
	}
	return cronSchedule{s}, nil
}
