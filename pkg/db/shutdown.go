package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Shutdown closes pool once in-flight queries finish. Pass it to herald.ShutdownHook.
func Shutdown(pool *pgxpool.Pool) func(context.Context) error {
	return func(context.Context) error {
		pool.Close()
		return nil
	}
}
