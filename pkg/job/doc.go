// Package job runs herald's background work on River, a Postgres-native queue.
//
// Every task is stored as a single River job kind carrying a task name and a
// JSON payload, so adding a task never needs a new River worker. Tasks are
// plain structs recognised by their method set:
//
//	type DeliverBroadcast struct{ engine *delivery.Engine }
//
//	func (t *DeliverBroadcast) Name() string { return "deliver_broadcast" }
//
//	func (t *DeliverBroadcast) Handle(ctx context.Context, p BroadcastPayload) error {
//	    _, err := t.engine.DeliverBroadcast(ctx, p.BroadcastID, p.ClaimID)
//	    return err
//	}
//
// Periodic tasks add Schedule(), returning a five-field cron expression or a
// descriptor such as "@every 1m", and take no payload:
//
//	func (t *DispatchDue) Schedule() string { return "@every 1m" }
//	func (t *DispatchDue) Handle(ctx context.Context) error { ... }
//
// # Wiring
//
//	if err := job.Migrate(ctx, pool, logger); err != nil { ... }
//
//	manager, err := job.NewManager(pool,
//	    job.WithTask(tasks.NewDeliverBroadcast(engine)),
//	    job.WithScheduledTask(tasks.NewDispatchDue(sched)),
//	    job.WithQueue("broadcasts", 4),
//	    job.WithLogger(logger),
//	)
//
// Jobs can be enqueued before Start. Enqueue on a Manager rejects names that
// were never registered with [ErrUnknownTask]; an [Enqueuer] cannot check
// names, and the worker cancels jobs whose task it does not know. Payloads
// that fail to decode are cancelled too instead of being retried.
//
//	err := manager.Enqueue(ctx, "deliver_broadcast", payload,
//	    job.InQueue("broadcasts"),
//	    job.UniqueFor(time.Hour),
//	    job.UniqueKey(payload.BroadcastID),
//	)
//
// EnqueueTx inserts inside a caller's pgx transaction so the job only exists
// if the transaction commits.
//
// Uniqueness compares the task name and the unique key only; two jobs with
// the same key but different payloads are still duplicates within the period.
package job
