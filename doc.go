// Package herald is a bulk delivery and async job orchestration engine.
//
// It sends broadcasts to large recipient sets through a rate-limited batch
// engine, schedules broadcasts for later dispatch, and runs long external
// jobs whose results arrive through an HMAC-signed webhook and are then
// delivered back to the requester.
//
// This package is the HTTP surface. It wraps a chi router with a small
// [Context] type, error handling, health probes and a job manager whose
// workers share the server lifecycle:
//
//	app := herald.New(
//	    herald.WithLogger("herald", cfg.Log),
//	    herald.WithMiddleware(middlewares.RequestID(), middlewares.Recover()),
//	    herald.WithHandlers(
//	        handlers.NewCallbacks(jobs),
//	        handlers.NewOperator(engine, jobs, broadcasts),
//	    ),
//	    herald.WithJobManager(manager),
//	    herald.WithHealthChecks(
//	        herald.WithReadinessCheck("postgres", db.Healthcheck(pool)),
//	    ),
//	)
//
//	if err := app.Run(cfg.HTTP.Addr, herald.ShutdownTimeout(30*time.Second)); err != nil {
//	    log.Fatal(err)
//	}
//
// # Packages
//
// The delivery core lives under pkg:
//
//   - pkg/ratelimit: per-subject sliding window limiter backed by a counter store
//   - pkg/store: delivery, broadcast and job records (memory and Postgres)
//   - pkg/delivery: batch delivery engine with retry and outcome classification
//   - pkg/scheduler: claims due broadcasts and hands them to a dispatcher
//   - pkg/compute: external job submission, callback verification and result delivery
//   - pkg/content: message payload normalization for channels
//
// Background work is declared in the tasks package and registered on a
// [job.Manager]; HTTP endpoints live in the handlers package.
//
// # Handlers
//
// Handlers implement [Handler] to declare routes:
//
//	func (h *Operator) Routes(r herald.Router) {
//	    r.Route("/broadcasts/{id}", func(r herald.Router) {
//	        r.POST("/retry-failed", h.retryFailed)
//	        r.GET("/stats", h.stats)
//	    })
//	}
//
// Handlers return errors. [HTTPError] values keep their status code, anything
// else becomes a 500 unless a custom [ErrorHandler] is installed.
package herald
