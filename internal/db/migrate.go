package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies the embedded migrations for the dialect and returns the
// number of newly applied versions.
func Migrate(ctx context.Context, conn *sql.DB, dialect Dialect) (int, error) {
	var (
		gd  goose.Dialect
		dir string
	)
	switch dialect {
	case DialectSQLite:
		gd, dir = goose.DialectSQLite3, "migrations/sqlite"
	case DialectMySQL:
		gd, dir = goose.DialectMySQL, "migrations/mysql"
	case DialectPostgres:
		gd, dir = goose.DialectPostgres, "migrations/postgres"
	default:
		return 0, fmt.Errorf("no migrations for dialect %q", dialect)
	}
	fsys, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return 0, fmt.Errorf("migrations fs: %w", err)
	}
	p, err := goose.NewProvider(gd, conn, fsys)
	if err != nil {
		return 0, fmt.Errorf("migrations provider: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	return len(results), nil
}
