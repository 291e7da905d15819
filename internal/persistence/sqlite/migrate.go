package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrate applies pending schema migrations and returns the resulting version.
func Migrate(ctx context.Context, db *sqlx.DB, logger *slog.Logger) (int64, error) {
	dialect := goose.DialectSQLite3
	if db.DriverName() == DriverPostgres {
		dialect = goose.DialectPostgres
	}

	fsys, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("sqlite: migrations: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db.DB, fsys)
	if err != nil {
		return 0, fmt.Errorf("sqlite: migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("sqlite: apply migrations: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, res := range results {
		logger.InfoContext(ctx, "migration applied",
			"version", res.Source.Version,
			"path", res.Source.Path,
			"duration", res.Duration,
		)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("sqlite: read schema version: %w", err)
	}
	return version, nil
}
