package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate brings the schema named by databaseURL up to date. Each dialect
// has its own embedded migration set under migrations/<dialect>.
func Migrate(databaseURL string) error {
	d, _, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return err
	}

	src, err := iofs.New(migrationsFS, "migrations/"+d.name)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(d, databaseURL))
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// migrateURL adds the connection parameters Open would use so the migration
// connection enforces foreign keys the same way.
func migrateURL(d dialect, databaseURL string) string {
	if d != sqliteDialect {
		return databaseURL
	}
	_, dsn, _ := parseDatabaseURL(databaseURL)
	return "sqlite3://" + dsn
}
