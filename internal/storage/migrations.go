package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the journal schema this build reads and writes.
const ExpectedSchemaVersion = 2

// Migration moves the journal schema to Version.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create runs journal",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS runs (
					id TEXT PRIMARY KEY,
					command TEXT NOT NULL,
					csv_path TEXT NOT NULL,
					train_start TEXT NOT NULL,
					train_end TEXT NOT NULL,
					eval_start TEXT NOT NULL,
					eval_end TEXT NOT NULL,
					backend TEXT NOT NULL,
					strategy TEXT,
					train_rows INTEGER NOT NULL DEFAULT 0,
					eval_rows INTEGER NOT NULL DEFAULT 0,
					features INTEGER NOT NULL DEFAULT 0,
					one_hot INTEGER NOT NULL DEFAULT 0,
					duration_ms INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_runs_created_at ON runs(created_at)`,
			}
			for _, q := range queries {
				if _, err := tx.Exec(q); err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add run summary",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE runs ADD COLUMN summary TEXT NOT NULL DEFAULT '{}'`)
			return err
		},
	},
}

// Migrate brings the journal up to ExpectedSchemaVersion. Each step runs in
// its own transaction together with the user_version bump.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version > ExpectedSchemaVersion {
		return fmt.Errorf("journal schema %d is newer than supported %d", version, ExpectedSchemaVersion)
	}

	for _, m := range migrations {
		if m.Version <= version {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("journal migration %d (%s): %w", m.Version, m.Description, err)
		}
		slog.Debug("Applied migration", "version", m.Version, "description", m.Description)
		version = m.Version
	}
	return nil
}

func (s *SQLiteStorage) apply(ctx context.Context, m Migration) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = m.Up(tx); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion reads PRAGMA user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
