package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// timeLayout sorts lexicographically in chronological order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// busyTimeout is how long a connection waits for another writer's lock, in ms
const busyTimeout = 5000

// dsn applies WAL and a busy timeout to every pooled connection of a file
// database so concurrent writers wait instead of failing with SQLITE_BUSY
func dsn(path string) string {
	if path == ":memory:" {
		return path
	}

	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeout)
}

// SQLiteStore keeps artifacts in a SQLite database. Each artifact is stored as
// JSON next to the columns needed for listing and summaries.
type SQLiteStore struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations
func OpenSQLite(ctx context.Context, log logrus.FieldLogger, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// A :memory: database exists per connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{
		db:  db,
		log: log.WithField("component", "artifact_store"),
	}

	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return s, nil
}

// Put implements Store
func (s *SQLiteStore) Put(ctx context.Context, a *Artifact) error {
	if a.EntityID == "" {
		return ErrEntityRequired
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", a.EntityID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (entity_id, label, kind, cv_mae, n_samples, n_features, trained_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			label = excluded.label,
			kind = excluded.kind,
			cv_mae = excluded.cv_mae,
			n_samples = excluded.n_samples,
			n_features = excluded.n_features,
			trained_at = excluded.trained_at,
			payload = excluded.payload
	`, a.EntityID, a.Label, string(a.Kind), a.CVMAE, a.Samples, len(a.Columns),
		a.TrainedAt.UTC().Format(timeLayout), string(payload))
	if err != nil {
		return fmt.Errorf("store artifact %s: %w", a.EntityID, err)
	}

	return nil
}

// Get implements Store
func (s *SQLiteStore) Get(ctx context.Context, entityID string) (*Artifact, error) {
	var payload string

	err := s.db.QueryRowContext(ctx, `SELECT payload FROM artifacts WHERE entity_id = ?`, entityID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", entityID, err)
	}

	return decode(entityID, payload)
}

// Delete implements Store
func (s *SQLiteStore) Delete(ctx context.Context, entityID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("delete artifact %s: %w", entityID, err)
	}

	return nil
}

// List implements Store
func (s *SQLiteStore) List(ctx context.Context) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_id, payload FROM artifacts ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []*Artifact

	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}

		a, err := decode(id, payload)
		if err != nil {
			s.log.WithError(err).WithField("entity", id).Warn("Skipping unreadable artifact")

			continue
		}

		out = append(out, a)
	}

	return out, rows.Err()
}

// RecordRun implements Store
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_runs (id, run_trigger, started_at, finished_at, trained, skipped, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Trigger, run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.Trained, run.Skipped, run.Failed)
	if err != nil {
		return fmt.Errorf("record training run: %w", err)
	}

	return nil
}

// Runs implements Store
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_trigger, started_at, finished_at, trained, skipped, failed
		FROM training_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list training runs: %w", err)
	}
	defer rows.Close()

	var out []Run

	for rows.Next() {
		var (
			run               Run
			started, finished string
		)

		if err := rows.Scan(&run.ID, &run.Trigger, &started, &finished, &run.Trained, &run.Skipped, &run.Failed); err != nil {
			return nil, err
		}

		run.StartedAt, _ = time.Parse(timeLayout, started)
		run.FinishedAt, _ = time.Parse(timeLayout, finished)
		out = append(out, run)
	}

	return out, rows.Err()
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decode(entityID, payload string) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", entityID, err)
	}

	return &a, nil
}
