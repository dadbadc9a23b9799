package db

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mongodb"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/moodlocation/apiserver/config"
	"github.com/moodlocation/apiserver/internal/db/migrations"
)

const migrationsCollection = "schema_migrations"

// NewMigrator builds a migrator over the embedded migrations.
// Callers must Close it.
func NewMigrator(cfg config.DatabaseConfig) (*migrate.Migrate, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("load migrations failed: %w", err)
	}

	dsn, err := MigrationURL(cfg)
	if err != nil {
		return nil, err
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return nil, fmt.Errorf("init migrator failed: %w", err)
	}
	return migrator, nil
}

// MigrateUp applies all pending migrations. No pending migrations is not an error.
func MigrateUp(cfg config.DatabaseConfig) error {
	migrator, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate up failed: %w", err)
	}
	return nil
}

// MigrationURL rewrites the connection URI so that its path names the
// application database, which the golang-migrate mongodb driver requires.
func MigrationURL(cfg config.DatabaseConfig) (string, error) {
	name, err := DatabaseName(cfg)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(strings.TrimSpace(cfg.URI))
	if err != nil {
		return "", fmt.Errorf("invalid mongo uri: %w", err)
	}
	u.Path = "/" + name

	q := u.Query()
	q.Set("x-migrations-collection", migrationsCollection)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
