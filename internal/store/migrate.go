package store

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// runMigrations applies every pending migration for the dialect.
func runMigrations(ctx context.Context, dialect goose.Dialect, db *sql.DB, dir string) error {
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return eris.Wrapf(err, "migrate: open %s", dir)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return eris.Wrap(err, "migrate: new provider")
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return eris.Wrap(err, "migrate: up")
	}
	for _, r := range results {
		zap.L().Info("migration applied",
			zap.String("dialect", string(dialect)),
			zap.String("source", r.Source.Path),
			zap.Duration("duration", r.Duration),
		)
	}
	return nil
}
