// internal/common/database/migrate.go
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// MigrationsFS exposes the embedded schema with the SQL files at its root.
func MigrationsFS() (fs.FS, error) {
	return fs.Sub(embedMigrations, "migrations")
}

// MigrationResult is the outcome of a single applied migration.
type MigrationResult struct {
	Version int64
	Path    string
}

// Migrate applies every pending migration and returns what ran.
func Migrate(ctx context.Context, db *sql.DB) ([]MigrationResult, error) {
	fsys, err := MigrationsFS()
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	applied := make([]MigrationResult, 0, len(results))
	for _, r := range results {
		applied = append(applied, MigrationResult{Version: r.Source.Version, Path: r.Source.Path})
	}
	return applied, nil
}
