package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies the embedded migrations for the dialect on a
// dedicated connection, closed before returning
func RunMigrations(dialect Dialect, dsn string) error {
	migrateDB, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := dialect.MigrateDriver(migrateDB)
	if err != nil {
		return fmt.Errorf("failed to create %s migration driver: %w", dialect.DriverName(), err)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+dialect.MigrationsSubdir())
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dialect.DriverName(), driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
