package store

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations for the database named by dsn.
// It uses its own connection, so it can run before or after OpenSQL.
func Migrate(dsn string) error {
	dialect, source, err := ParseDSN(dsn)
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dialect, source))
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func migrateURL(dialect Dialect, source string) string {
	switch dialect {
	case Postgres:
		rest := strings.TrimPrefix(strings.TrimPrefix(source, "postgresql://"), "postgres://")
		return "pgx5://" + rest
	default:
		return "sqlite://" + strings.TrimPrefix(source, "file:")
	}
}
