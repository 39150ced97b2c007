// Command herald runs the delivery engine, broadcast scheduler, job workers
// and HTTP API in one process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrymomot/herald"
	"github.com/dmitrymomot/herald/handlers"
	"github.com/dmitrymomot/herald/middlewares"
	"github.com/dmitrymomot/herald/pkg/cache"
	"github.com/dmitrymomot/herald/pkg/channel"
	"github.com/dmitrymomot/herald/pkg/compute"
	"github.com/dmitrymomot/herald/pkg/db"
	"github.com/dmitrymomot/herald/pkg/delivery"
	"github.com/dmitrymomot/herald/pkg/job"
	"github.com/dmitrymomot/herald/pkg/logger"
	"github.com/dmitrymomot/herald/pkg/ratelimit"
	"github.com/dmitrymomot/herald/pkg/redis"
	"github.com/dmitrymomot/herald/pkg/scheduler"
	"github.com/dmitrymomot/herald/pkg/storage"
	"github.com/dmitrymomot/herald/pkg/store"
	"github.com/dmitrymomot/herald/pkg/store/postgres"
	"github.com/dmitrymomot/herald/tasks"
)

const setupTimeout = 2 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log, middlewares.RequestIDExtractor())

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	if err := postgres.Migrate(ctx, pool, cfg.DB.MigrationsTable, log); err != nil {
		return err
	}
	if err := job.Migrate(ctx, pool, log); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	limiter := ratelimit.New(ratelimit.NewRedisCounter(rdb), ratelimit.WithLogger(log))

	st := postgres.New(pool)

	sender, err := channel.NewTelegram(cfg.Telegram, channel.WithTelegramLogger(log))
	if err != nil {
		return err
	}
	engine := delivery.NewEngine(st, sender, limiter,
		delivery.WithConfig(cfg.Delivery),
		delivery.WithLogger(log),
	)

	// Insert-only client: the compute notifier and the queue dispatcher
	// enqueue before the manager that runs the tasks exists.
	enqueuer, err := job.NewEnqueuer(pool, job.WithEnqueuerLogger(log))
	if err != nil {
		return err
	}

	computeOpts := []compute.Option{
		compute.WithLogger(log),
		compute.WithNotifier(tasks.NewResultNotifier(enqueuer)),
	}
	if cfg.Storage.Enabled() {
		media, err := storage.New(cfg.Storage)
		if err != nil {
			return err
		}
		computeOpts = append(computeOpts, compute.WithStorage(media))
	} else {
		log.Warn("object storage disabled, inline job results will be rejected")
	}
	dispatcher, err := compute.New(st, compute.NewHTTPProvider(cfg.Provider, nil), engine, cfg.Compute, computeOpts...)
	if err != nil {
		return err
	}

	jobOpts := []job.Option{
		job.WithLogger(log),
		job.WithMaxWorkers(cfg.Jobs.MaxWorkers),
		job.WithQueue(tasks.QueueBroadcasts, cfg.Jobs.BroadcastWorkers),
		job.WithQueue(tasks.QueueResults, cfg.Jobs.ResultWorkers),
		job.WithTask(tasks.NewDeliverBroadcast(engine, tasks.WithLogger(log))),
		job.WithTask(tasks.NewRetryFailed(engine, tasks.WithLogger(log))),
		job.WithTask(tasks.NewDeliverJobResult(dispatcher, tasks.WithLogger(log))),
		job.WithScheduledTask(tasks.NewSweepJobTimeouts(dispatcher, cfg.Jobs.SweepSchedule, tasks.WithLogger(log))),
	}

	schedOpts := []scheduler.Option{
		scheduler.WithInterval(cfg.Scheduler.Interval),
		scheduler.WithLease(cfg.Scheduler.Lease),
		scheduler.WithLogger(log),
	}
	var runOpts []herald.RunOption
	switch cfg.Scheduler.Mode {
	case modeQueue:
		sched := scheduler.New(st, tasks.NewQueueDispatcher(enqueuer, cfg.Scheduler.Workers, cfg.Scheduler.Lease), schedOpts...)
		jobOpts = append(jobOpts, job.WithScheduledTask(tasks.NewDispatchDue(sched, cfg.Scheduler.Schedule, tasks.WithLogger(log))))
	default:
		workers := scheduler.NewPoolDispatcher(engine, cfg.Scheduler.Workers, scheduler.WithPoolLogger(log))
		runOpts = append(runOpts, poolScheduler(scheduler.New(st, workers, schedOpts...), workers, log)...)
	}

	manager, err := job.NewManager(pool, jobOpts...)
	if err != nil {
		return err
	}

	var operatorOpts []handlers.OperatorOption
	if cfg.HTTP.StatsCacheTTL > 0 {
		statsCache := cache.NewRedis[store.DeliveryStats](rdb, cache.WithPrefix("herald:stats"))
		operatorOpts = append(operatorOpts, handlers.WithStatsCache(statsCache, cfg.HTTP.StatsCacheTTL))
	}

	app := herald.New(
		herald.WithLogger("herald", cfg.Log, middlewares.RequestIDExtractor()),
		herald.WithBodyLimit(cfg.HTTP.BodyLimit),
		herald.WithMiddleware(
			middlewares.RequestID(),
			middlewares.Recover(),
			middlewares.Timeout(cfg.HTTP.RequestTimeout),
		),
		herald.WithErrorHandler(middlewares.JSONErrorHandler),
		herald.WithHandlers(
			handlers.NewCallbacks(dispatcher,
				middlewares.RateLimit(limiter, cfg.HTTP.CallbackRateLimit, cfg.HTTP.CallbackRateWindow)),
			handlers.NewOperator(st, tasks.NewRetryQueue(enqueuer), dispatcher,
				middlewares.BearerAuth(middlewares.WithBearerToken("operator", cfg.HTTP.OperatorToken)),
				operatorOpts...),
		),
		herald.WithJobManager(manager),
		herald.WithHealthChecks(
			herald.WithReadinessCheck("postgres", db.Healthcheck(pool)),
			herald.WithReadinessCheck("redis", redis.Healthcheck(rdb)),
			herald.WithReadinessCheck("jobs", herald.JobHealthcheck(manager)),
		),
	)

	runOpts = append(runOpts,
		herald.Logger(log),
		herald.ShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		herald.ShutdownHook(redis.Shutdown(rdb)),
		herald.ShutdownHook(db.Shutdown(pool)),
		herald.ShutdownHook(logger.Flush),
	)
	return app.Run(cfg.HTTP.Addr, runOpts...)
}

// poolScheduler runs sched in this process for the lifetime of the server.
// Running passes are drained before the database pool closes.
func poolScheduler(sched *scheduler.Scheduler, workers *scheduler.PoolDispatcher, log *slog.Logger) []herald.RunOption {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	start := func(context.Context) error {
		go func() {
			defer close(done)
			if err := sched.Run(ctx); err != nil {
				log.Error("scheduler stopped", slog.Any("error", err))
			}
		}()
		return nil
	}
	stop := func(shutdownCtx context.Context) error {
		cancel()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			return shutdownCtx.Err()
		}
		return workers.Shutdown(shutdownCtx)
	}
	return []herald.RunOption{herald.StartupHook(start), herald.ShutdownHook(stop)}
}
