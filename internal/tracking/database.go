package tracking

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// NewDatabase opens the play history database at dbPath and applies the schema.
// ":memory:" opens a private in-memory database.
func NewDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to :memory: would see its own empty database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA user_version = 1",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

// ensureSchema creates the database schema if it doesn't exist
func ensureSchema(db *sql.DB) error {
	schema := `
-- One row per finished channel or music playback
CREATE TABLE IF NOT EXISTS play_events (
    id         INTEGER PRIMARY KEY,
    timestamp  INTEGER NOT NULL,
    session_id TEXT    NOT NULL,
    kind       TEXT    NOT NULL CHECK (kind IN ('channel_stopped', 'music_stopped')),
    channel    INTEGER NOT NULL CHECK (channel >= -1),
    name       TEXT    NOT NULL,
    reason     TEXT    NOT NULL,
    played_ms  INTEGER NOT NULL CHECK (played_ms >= 0)
);

CREATE INDEX IF NOT EXISTS idx_plays_timestamp ON play_events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_plays_name ON play_events(name);
CREATE INDEX IF NOT EXISTS idx_plays_session ON play_events(session_id);
CREATE INDEX IF NOT EXISTS idx_plays_reason ON play_events(reason);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
