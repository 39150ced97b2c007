// Package logger builds the service's slog logger.
//
// Records go to stdout as JSON (or text with LOG_FORMAT=text). When
// SENTRY_DSN is set, warnings are also kept as Sentry logs and errors open
// Sentry issues; without a DSN the same code path logs to stdout only.
//
//	log := logger.New(cfg.Log, requestIDExtractor)
//
// Request and task scoped values travel in the context:
//
//	ctx = logger.WithAttrs(ctx, slog.String("broadcast_id", id))
//	log.InfoContext(ctx, "broadcast claimed") // carries broadcast_id
//
// ContextExtractor functions add further attributes per call, whichever
// sinks are configured.
package logger
