package artifact

import (
	"context"
	"fmt"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

//nolint:gochecknoglobals // ordered schema history
var migrations = []migration{
	{
		Version:     1,
		Description: "Artifacts",
		SQL: `
CREATE TABLE IF NOT EXISTS artifacts (
    entity_id TEXT PRIMARY KEY,
    label TEXT,
    kind TEXT NOT NULL,
    cv_mae REAL NOT NULL,
    n_samples INTEGER NOT NULL,
    n_features INTEGER NOT NULL,
    trained_at TEXT NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_cv_mae ON artifacts(cv_mae);
`,
	},
	{
		Version:     2,
		Description: "Training run history",
		SQL: `
CREATE TABLE IF NOT EXISTS training_runs (
    id TEXT PRIMARY KEY,
    run_trigger TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    trained INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    failed INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_training_runs_started ON training_runs(started_at);
`,
	},
}

// Migrate applies every migration not yet recorded in schema_migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TEXT
		)
	`); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		s.log.WithField("version", m.Version).Infof("Applying migration: %s", m.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC().Format(timeLayout),
		); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *SQLiteStore) appliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)

	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}

		applied[v] = true
	}

	return applied, rows.Err()
}
