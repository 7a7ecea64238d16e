package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"eventline/internal/db"
)

//go:embed sql/sqlite/*.sql sql/postgres/*.sql
var migrationsFS embed.FS

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

func dir(dialect string) string {
	return "sql/" + db.Dialect(dialect)
}

func gooseDialect(dialect string) string {
	if db.Dialect(dialect) == db.DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// Migrate applies the embedded migrations for the dialect.
func Migrate(ctx context.Context, conn *sql.DB, dialect string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(gooseDialect(dialect)); err != nil {
		return fmt.Errorf("migrate dialect: %w", err)
	}
	if err := goose.UpContext(ctx, conn, dir(dialect)); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Version reports the applied schema version.
func Version(ctx context.Context, conn *sql.DB, dialect string) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := goose.SetDialect(gooseDialect(dialect)); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, conn)
}
