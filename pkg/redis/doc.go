// Package redis opens go-redis clients from environment configuration.
//
// The client backs the shared rate-limit counter (see pkg/ratelimit) and the
// stats cache (see pkg/cache).
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//		return err
//	}
//	app := herald.New(
//		herald.WithHealthChecks(herald.WithReadinessCheck("redis", redis.Healthcheck(client))),
//	)
//	return app.Run(cfg.HTTP.Addr, herald.ShutdownHook(redis.Shutdown(client)))
//
// Connect retries the initial ping RetryAttempts times before giving up with
// [ErrConnectionFailed].
package redis
