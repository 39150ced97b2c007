// Package tasks holds herald's background work for the job manager.
//
// Each task is a plain struct with Name and Handle methods and is registered
// with job.WithTask or job.WithScheduledTask:
//
//	manager, err := job.NewManager(pool,
//	    job.WithQueue(tasks.QueueBroadcasts, 4),
//	    job.WithQueue(tasks.QueueResults, 8),
//	    job.WithTask(tasks.NewDeliverBroadcast(engine)),
//	    job.WithTask(tasks.NewRetryFailed(engine)),
//	    job.WithTask(tasks.NewDeliverJobResult(dispatcher)),
//	    job.WithScheduledTask(tasks.NewDispatchDue(sched, "@every 30s")),
//	    job.WithScheduledTask(tasks.NewSweepJobTimeouts(dispatcher, "")),
//	)
//
// The package also provides the enqueue side: [QueueDispatcher] hands claimed
// broadcasts to deliver_broadcast, [RetryQueue] backs the operator
// retry-failed endpoint and [ResultNotifier] queues result delivery after a
// successful job callback.
package tasks
