package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/dmitrymomot/herald/pkg/logger"
)

// Manager inserts and works herald's tasks. Jobs may be enqueued before
// Start; they run once workers are up.
type Manager struct {
	*Enqueuer
	tasks   map[string]runFunc
	logger  *slog.Logger
	mu      sync.Mutex
	running bool
}

func NewManager(pool *pgxpool.Pool, opts ...Option) (*Manager, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}
	cfg := &config{
		logger:     logger.NewNope(),
		tasks:      map[string]runFunc{},
		queues:     map[string]int{},
		maxWorkers: 100,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	queues := map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: cfg.maxWorkers}}
	for name, n := range cfg.queues {
		queues[name] = river.QueueConfig{MaxWorkers: n}
	}

	periodicJobs := make([]*river.PeriodicJob, 0, len(cfg.periodic))
	for _, p := range cfg.periodic {
		sched, err := parseSchedule(p.schedule)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", p.name, err)
		}
		run := p.run
		cfg.tasks[p.name] = func(ctx context.Context, _ json.RawMessage) error { return run(ctx) }

		name := p.name
		periodicJobs = append(periodicJobs, river.NewPeriodicJob(sched,
			func() (river.JobArgs, *river.InsertOpts) { return taskArgs{Task: name}, nil },
			&river.PeriodicJobOpts{},
		))
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &dispatcher{tasks: cfg.tasks, logger: cfg.logger})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:       queues,
		Workers:      workers,
		PeriodicJobs: periodicJobs,
		Logger:       cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("job: create client: %w", err)
	}

	return &Manager{
		Enqueuer: &Enqueuer{pool: pool, client: client},
		tasks:    cfg.tasks,
		logger:   cfg.logger,
	}, nil
}

// Enqueue rejects task names that were never registered.
func (m *Manager) Enqueue(ctx context.Context, name string, payload any, opts ...EnqueueOption) error {
	if _, ok := m.tasks[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return m.Enqueuer.Enqueue(ctx, name, payload, opts...)
}

func (m *Manager) EnqueueTx(ctx context.Context, tx pgx.Tx, name string, payload any, opts ...EnqueueOption) error {
	if _, ok := m.tasks[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return m.Enqueuer.EnqueueTx(ctx, tx, name, payload, opts...)
}

// Start launches the workers and the periodic job scheduler.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyStarted
	}
	if err := m.client.Start(ctx); err != nil {
		return fmt.Errorf("job: start: %w", err)
	}
	m.running = true
	m.logger.InfoContext(ctx, "job workers started", slog.Int("tasks", len(m.tasks)))
	return nil
}

// Stop waits for running jobs to finish or ctx to end.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return ErrNotStarted
	}
	if err := m.client.Stop(ctx); err != nil {
		return fmt.Errorf("job: stop: %w", err)
	}
	m.running = false
	m.logger.InfoContext(ctx, "job workers stopped")
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// StartFunc and Shutdown adapt Start and Stop to herald.StartupHook and
// herald.ShutdownHook.
func (m *Manager) StartFunc() func(context.Context) error { return m.Start }

func (m *Manager) Shutdown() func(context.Context) error { return m.Stop }
