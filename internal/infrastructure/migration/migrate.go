package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator applies the SQL schema migrations of the catalog tables
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New creates a Migrator over an open postgres connection and a directory of
// golang-migrate *.up.sql / *.down.sql files
func New(db *sql.DB, migrationsPath string, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "catalog_schema_migrations"})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{migrate: m, logger: logger}, nil
}

// apply runs a golang-migrate operation, treating ErrNoChange as success, and
// logs the resulting schema version
func (m *Migrator) apply(op string, fields []zap.Field, fn func() error) error {
	m.logger.Info("schema migration started", append(fields, zap.String("op", op))...)

	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("schema already current", zap.String("op", op))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", op, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("schema migration finished",
		zap.String("op", op),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	return m.apply("up", nil, m.migrate.Up)
}

// Down rolls back every applied migration
func (m *Migrator) Down() error {
	return m.apply("down", nil, m.migrate.Down)
}

// Steps applies n migrations forward, or -n backward when negative
func (m *Migrator) Steps(n int) error {
	return m.apply("steps", []zap.Field{zap.Int("steps", n)}, func() error {
		return m.migrate.Steps(n)
	})
}

// GoTo migrates up or down to the given version
func (m *Migrator) GoTo(version uint) error {
	return m.apply("goto", []zap.Field{zap.Uint("target_version", version)}, func() error {
		return m.migrate.Migrate(version)
	})
}

// Version returns the current schema version; 0 means nothing is applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied without running it. Used to clear a dirty
// state after a failed migration was fixed by hand.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("forcing schema version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Close releases the source and database handles
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}
