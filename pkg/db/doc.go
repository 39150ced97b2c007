// Package db provides PostgreSQL connection helpers built on [github.com/jackc/pgx/v5/pgxpool].
//
// It covers pool setup with startup retries, health checks, transactions and
// goose migrations. Record access lives in pkg/store/postgres.
//
// # Configuration
//
// [Config] is populated from environment variables:
//
//	DATABASE_CONN_URL           - PostgreSQL connection URL (required)
//	DATABASE_MAX_OPEN_CONNS     - Maximum open connections (default: 10)
//	DATABASE_MIN_CONNS          - Minimum idle connections (default: 2)
//	DATABASE_HEALTHCHECK_PERIOD - Health check interval (default: 1m)
//	DATABASE_MAX_CONN_IDLE_TIME - Maximum connection idle time (default: 10m)
//	DATABASE_MAX_CONN_LIFETIME  - Maximum connection lifetime (default: 30m)
//	DATABASE_RETRY_ATTEMPTS     - Connection retry attempts (default: 3)
//	DATABASE_RETRY_INTERVAL     - Base retry interval (default: 5s)
//	DATABASE_MIGRATIONS_TABLE   - Migrations table name (default: schema_migrations)
//
// # Usage
//
//	pool, err := db.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
//		_, err := tx.Exec(ctx, "update deliveries set status = 'skipped' where broadcast_id = $1", id)
//		return err
//	})
//
// # Migrations
//
//	//go:embed migrations/*.sql
//	var migrations embed.FS
//
//	err := db.Migrate(ctx, pool, migrations, "migrations", "schema_migrations", logger)
//
// WithTx accepts a pool or an open transaction; the latter nests through a
// savepoint. Failures match the package sentinels with errors.Is.
package db
