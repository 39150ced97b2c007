package db

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

// Migrate applies the goose migrations in dir of migrations, recording them
// in table. It uses a goose provider, so concurrent callers with different
// filesystems or tables do not share state.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS, dir, table string, log *slog.Logger) error {
	sub, err := fs.Sub(migrations, dir)
	if err != nil {
		return errors.Join(ErrApplyMigrations, err)
	}
	store, err := database.NewStore(database.DialectPostgres, table)
	if err != nil {
		return errors.Join(ErrApplyMigrations, err)
	}

	// The *sql.DB borrows pool connections and must not be closed here.
	provider, err := goose.NewProvider("", stdlib.OpenDBFromPool(pool), sub, goose.WithStore(store))
	if err != nil {
		return errors.Join(ErrApplyMigrations, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Join(ErrApplyMigrations, err)
	}
	for _, r := range results {
		log.InfoContext(ctx, "migration applied",
			slog.Int64("version", r.Source.Version),
			slog.String("file", r.Source.Path),
			slog.Duration("took", r.Duration),
		)
	}
	if len(results) == 0 {
		log.DebugContext(ctx, "schema up to date", slog.String("table", table))
	}
	return nil
}
