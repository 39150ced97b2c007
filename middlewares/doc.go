// Package middlewares provides the HTTP middleware herald's API runs with.
//
//   - RequestID reuses or generates a request ID; RequestIDExtractor adds it to logs.
//   - Recover turns panics into a PanicError.
//   - Timeout bounds handler time and returns a TimeoutError.
//   - BearerAuth guards operator routes with static API tokens.
//   - RateLimit caps request rates through the shared fixed-window limiter.
//
// JSONErrorHandler renders all of the above, plus HTTPErrors from handlers,
// as a JSON body carrying the request ID.
//
// Apply RequestID first so every later log line carries the ID. Timeout
// reports panics of the handler goroutine it starts as PanicError too:
//
//	app := herald.New(
//	    herald.WithLogger("api", cfg.Log, middlewares.RequestIDExtractor()),
//	    herald.WithMiddleware(
//	        middlewares.RequestID(),
//	        middlewares.Recover(),
//	        middlewares.Timeout(10*time.Second),
//	    ),
//	    herald.WithErrorHandler(middlewares.JSONErrorHandler),
//	)
package middlewares
