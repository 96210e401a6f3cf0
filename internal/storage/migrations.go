package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Unknown query log",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS unknown_queries (
					id TEXT PRIMARY KEY,
					utterance TEXT NOT NULL,
					suggested_capabilities TEXT NOT NULL DEFAULT '[]',
					frequency INTEGER NOT NULL DEFAULT 1,
					first_seen DATETIME NOT NULL,
					last_seen DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_unknown_queries_last_seen ON unknown_queries(last_seen)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Unknown query feedback and resolution",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`ALTER TABLE unknown_queries ADD COLUMN feedback TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE unknown_queries ADD COLUMN resolved INTEGER NOT NULL DEFAULT 0`,
			)
		},
	},
	{
		Version:     3,
		Description: "Request events",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS events (
					id TEXT PRIMARY KEY,
					timestamp DATETIME NOT NULL,
					route_kind TEXT NOT NULL,
					route_reason TEXT NOT NULL DEFAULT '',
					capability_id TEXT NOT NULL DEFAULT '',
					route_confidence REAL NOT NULL DEFAULT 0,
					answer_source TEXT NOT NULL DEFAULT '',
					fallback_kind TEXT NOT NULL DEFAULT '',
					escalation_reason TEXT NOT NULL DEFAULT '',
					safety_verdict TEXT NOT NULL DEFAULT '',
					latency_ms INTEGER NOT NULL DEFAULT 0,
					tokens INTEGER NOT NULL DEFAULT 0,
					escalated INTEGER NOT NULL DEFAULT 0,
					escalation_failed INTEGER NOT NULL DEFAULT 0,
					low_confidence INTEGER NOT NULL DEFAULT 0,
					cache_hit INTEGER NOT NULL DEFAULT 0,
					detail TEXT NOT NULL DEFAULT '{}'
				)`,
				`CREATE INDEX idx_events_timestamp ON events(timestamp)`,
				`CREATE INDEX idx_events_capability ON events(capability_id)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		s.logger.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
