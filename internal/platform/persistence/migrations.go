package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

// migrationSource turns a directory into a golang-migrate source URL
func migrationSource(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

// RunMigrations brings the schema under migrationsPath up to date. A dirty
// schema is reported instead of being forced.
func RunMigrations(logger *slog.Logger, databaseURL string, migrationsPath string) error {
	if migrationsPath == "" {
		return errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return errors.New("database URL cannot be empty")
	}

	m, err := migrate.New(migrationSource(migrationsPath), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			logger.Warn("Failed to close migrate instance", "source_error", sourceErr, "database_error", dbErr)
		}
	}()

	if _, dirty, verr := m.Version(); verr == nil && dirty {
		return errors.New("schema is dirty; fix the failed migration before starting")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("Schema is up to date", "version", version)
	return nil
}
