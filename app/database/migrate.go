package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/factory"
)

const MigrationsTable = "schema_migrations"

//go:embed migrations/*.sql
var migrations embed.FS

// migrationLogger adapts logrus to the migrate.Logger interface.
type migrationLogger struct {
	logger logrus.FieldLogger
}

func (l migrationLogger) Printf(format string, v ...interface{}) {
	l.logger.Debugf(format, v...)
}

func (l migrationLogger) Verbose() bool {
	return logrus.IsLevelEnabled(logrus.DebugLevel)
}

func Source() (source.Driver, error) {
	driver, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations source: %w", err)
	}
	return driver, nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := Source()
	if err != nil {
		return nil, err
	}

	target, err := mysql.WithInstance(db, &mysql.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations target: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "mysql", target)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrationLogger{logger: factory.NewModuleLogger("migrations")}
	return m, nil
}

// MigrateUp applies all pending migrations. An up-to-date schema is not an error.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	factory.NewModuleLogger("migrations").WithFields(logrus.Fields{
		"version":  version,
		"dirty":    dirty,
		"duration": time.Since(start).String(),
	}).Info("Migrations completed")
	return nil
}

// MigrateDown rolls back the given number of steps.
func MigrateDown(db *sql.DB, steps int) error {
	if steps <= 0 {
		return errors.New("steps must be positive")
	}

	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed down: %w", err)
	}
	return nil
}
