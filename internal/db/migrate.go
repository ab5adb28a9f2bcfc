package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/todo-app/apiserver/config"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrateUp applies all pending up migrations for the configured driver.
func MigrateUp(cfg config.DatabaseConfig) error {
	return runMigrations(cfg, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(cfg config.DatabaseConfig, steps int) error {
	if steps < 1 {
		return errors.New("steps must be positive")
	}
	return runMigrations(cfg, func(m *migrate.Migrate) error { return m.Steps(-steps) })
}

func runMigrations(cfg config.DatabaseConfig, run func(*migrate.Migrate) error) error {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverPostgres
	}

	var databaseURL string
	switch driver {
	case DriverPostgres:
		databaseURL = PostgresURL(cfg)
	case DriverSQLite:
		databaseURL = "sqlite://" + cfg.SQLitePath
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := run(migrator); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate failed: %w", err)
	}
	return nil
}
