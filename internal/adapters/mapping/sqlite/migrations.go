package sqlite

import (
	"database/sql"
	"fmt"
)

// applyMigrations applies all database migrations in order.
func applyMigrations(db *sql.DB) error {
	if err := createMigrationsTable(db); err != nil {
		return err
	}

	migrations := []struct {
		version int
		name    string
		sql     string
	}{
		{1, "create_mappings_table", createMappingsTable},
		{2, "create_mapping_indices", createMappingIndices},
		{3, "create_pending_writes_table", createPendingWritesTable},
	}

	for _, m := range migrations {
		applied, err := isMigrationApplied(db, m.version)
		if err != nil {
			return fmt.Errorf("could not check migration %d: %w", m.version, err)
		}
		if applied {
			continue
		}

		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("could not apply migration %d (%s): %w", m.version, m.name, err)
		}
		if err := recordMigration(db, m.version, m.name); err != nil {
			return fmt.Errorf("could not record migration %d: %w", m.version, err)
		}
	}

	return nil
}

// createMigrationsTable creates the migrations tracking table.
func createMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// isMigrationApplied checks if a migration has been applied.
func isMigrationApplied(db *sql.DB, version int) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// recordMigration records that a migration has been applied.
func recordMigration(db *sql.DB, version int, name string) error {
	_, err := db.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

// Migration SQL statements

// Empty identifiers are stored as NULL so the unique indices only constrain
// identifiers that are present.
const createMappingsTable = `
CREATE TABLE mappings (
	id TEXT PRIMARY KEY,
	source_a_id TEXT,
	source_b_token TEXT,
	local_path TEXT,
	last_synced_direction TEXT NOT NULL DEFAULT '',
	last_synced_at INTEGER NOT NULL
);
`

const createMappingIndices = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_source_a ON mappings(source_a_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_source_b ON mappings(source_b_token);
CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_local ON mappings(local_path);
CREATE INDEX IF NOT EXISTS idx_mappings_last_synced ON mappings(last_synced_at);
`

const createPendingWritesTable = `
CREATE TABLE pending_writes (
	direction TEXT NOT NULL,
	source_id TEXT NOT NULL,
	destination_id TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	committed INTEGER NOT NULL DEFAULT 0,
	total INTEGER NOT NULL DEFAULT 0,
	created_destination BOOLEAN NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (direction, source_id)
);
`
