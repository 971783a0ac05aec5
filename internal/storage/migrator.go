package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations applies any embedded SQL files not yet recorded in the
// schema_migrations tracking table, in lexical order.
func runMigrations(db *sql.DB) error {
	const migrationTableSchema = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME
	);`

	if _, err := db.Exec(migrationTableSchema); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var exists int
		err := db.QueryRow("SELECT 1 FROM schema_migrations WHERE version = ?", file).Scan(&exists)
		if err == nil {
			continue // applied
		} else if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check migration status: %w", err)
		}

		log.Info().Str("file", file).Msg("Applying database migration...")

		content, err := migrationsFS.ReadFile("migrations/" + file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to exec migration %s: %w", file, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", file, time.Now()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}
