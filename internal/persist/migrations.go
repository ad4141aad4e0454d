package persist

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Dialect selects the migration set and goose dialect.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

func (d Dialect) dir() string {
	if d == DialectSQLite {
		return path.Join("migrations", "sqlite")
	}
	return path.Join("migrations", "postgres")
}

// RunMigrations applies all pending database migrations.
func RunMigrations(ctx context.Context, db *sql.DB, d Dialect) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(string(d)); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, d.dir()); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
