package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/dmitrymomot/herald/pkg/logger"
)

// Enqueuer inserts jobs without working them. herald uses one where code
// that the Manager's tasks depend on must also enqueue, which would
// otherwise need the Manager before it exists.
type Enqueuer struct {
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
}

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*river.Config)

func WithEnqueuerLogger(l *slog.Logger) EnqueuerOption {
	return func(c *river.Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// NewEnqueuer creates an insert-only River client. Task names are not
// checked; unknown ones are cancelled by the worker.
func NewEnqueuer(pool *pgxpool.Pool, opts ...EnqueuerOption) (*Enqueuer, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}
	cfg := &river.Config{Logger: logger.NewNope()}
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := river.NewClient(riverpgxv5.New(pool), cfg)
	if err != nil {
		return nil, fmt.Errorf("job: create enqueuer: %w", err)
	}
	return &Enqueuer{pool: pool, client: client}, nil
}

// Enqueue inserts a job for task name with payload encoded as JSON.
// A duplicate dropped by UniqueFor is not an error.
func (e *Enqueuer) Enqueue(ctx context.Context, name string, payload any, opts ...EnqueueOption) error {
	args, ins, err := newInsert(name, payload, opts)
	if err != nil {
		return err
	}
	if _, err := e.client.Insert(ctx, args, ins); err != nil {
		return fmt.Errorf("job: enqueue %s: %w", name, err)
	}
	return nil
}

// EnqueueTx is Enqueue inside tx; the job exists only if tx commits.
func (e *Enqueuer) EnqueueTx(ctx context.Context, tx pgx.Tx, name string, payload any, opts ...EnqueueOption) error {
	args, ins, err := newInsert(name, payload, opts)
	if err != nil {
		return err
	}
	if _, err := e.client.InsertTx(ctx, tx, args, ins); err != nil {
		return fmt.Errorf("job: enqueue %s: %w", name, err)
	}
	return nil
}

func newInsert(name string, payload any, opts []EnqueueOption) (taskArgs, *river.InsertOpts, error) {
	args := taskArgs{Task: name}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return args, nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		args.Payload = raw
	}

	var ins insert
	for _, opt := range opts {
		opt(&ins)
	}
	if ins.opts.UniqueOpts.ByArgs {
		args.UniqueKey = ins.uniqueKey
	}
	return args, &ins.opts, nil
}
