// repository/postgres/migrations.go
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/MichaelAJay/go-logger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationURL rewrites a postgres:// connection string for the pgx/v5
// migrate driver.
func migrationURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, scheme) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, scheme)
		}
	}
	return databaseURL
}

// RunMigrations applies all pending migrations embedded in the binary.
func RunMigrations(databaseURL string, log logger.Logger) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrationURL(databaseURL))
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	log.Info("Database migrations applied",
		logger.Field{Key: "version", Value: version},
		logger.Field{Key: "dirty", Value: dirty})

	return nil
}

// ResetDatabase drops all tables (useful for testing)
func ResetDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	queries := []string{
		"DROP TABLE IF EXISTS user_login_risk_summaries CASCADE;",
		"DROP TABLE IF EXISTS login_attempts CASCADE;",
		"DROP TABLE IF EXISTS schema_migrations CASCADE;",
	}

	for _, query := range queries {
		if _, err := pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute reset query '%s': %w", query, err)
		}
	}

	return nil
}
