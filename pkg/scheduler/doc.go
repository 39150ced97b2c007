// Package scheduler claims due broadcasts and hands them to a Dispatcher.
//
// A Scheduler ticks on a fixed interval. Each tick claims at most as many
// broadcasts as the dispatcher has free capacity for; the claim is skip-locked
// in the store so several scheduler instances can run side by side.
//
//	pool := scheduler.NewPoolDispatcher(engine, 4, scheduler.WithPoolLogger(log))
//	s := scheduler.New(st, pool, scheduler.WithInterval(time.Minute))
//	go s.Run(ctx)
//	defer pool.Shutdown(shutdownCtx)
//
// In queue mode the tick is driven by a periodic River task instead of Run,
// and the dispatcher enqueues one delivery job per claimed broadcast.
package scheduler
