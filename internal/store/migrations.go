package store

import (
	"context"
	"fmt"
	"time"
)

// Schema changes are an ordered list of idempotent steps with the applied
// version tracked in schema_migrations, so deployed instances cannot drift
// apart through ad hoc column additions. The steps mirror how the schema
// actually evolved: base room table, then labels and target temperature,
// then the boolean metrics, then the weather and electricity tables.

type migration struct {
	version int
	name    string
	stmts   []string
}

func (s *Store) migrations() []migration {
	ts := s.timeType()
	return []migration{
		{1, "room base table", []string{
			`CREATE TABLE IF NOT EXISTS room (
				time ` + ts + ` NOT NULL,
				id TEXT NOT NULL,
				temperature DOUBLE PRECISION,
				humidity DOUBLE PRECISION,
				shading DOUBLE PRECISION,
				valve DOUBLE PRECISION,
				ventilation BOOLEAN
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS room_time_id ON room (time, id)`,
		}},
		{2, "room name and target temperature", []string{
			`ALTER TABLE room ADD COLUMN name TEXT`,
			`ALTER TABLE room ADD COLUMN temperature_target DOUBLE PRECISION`,
		}},
		{3, "room light and presence", []string{
			`ALTER TABLE room ADD COLUMN light BOOLEAN`,
			`ALTER TABLE room ADD COLUMN presence BOOLEAN`,
		}},
		{4, "weather time marker", []string{
			`CREATE TABLE IF NOT EXISTS weather (
				time ` + ts + ` NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS weather_time ON weather (time)`,
		}},
		{5, "per-phase electricity", []string{
			`CREATE TABLE IF NOT EXISTS electricity (
				time ` + ts + ` NOT NULL,
				id TEXT NOT NULL,
				name TEXT,
				energy_l1 DOUBLE PRECISION,
				energy_l2 DOUBLE PRECISION,
				energy_l3 DOUBLE PRECISION
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS electricity_time_id ON electricity (time, id)`,
		}},
	}
}

// timeType picks the timestamp column type per driver. Production runs on
// Postgres (timestamp with time zone); tests run on SQLite, whose driver
// only maps plain TIMESTAMP declarations back to time values.
func (s *Store) timeType() string {
	if s.db.DriverName() == "pgx" {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}

// Migrate brings the schema up to the current version. Safe to call on every
// process start: already-applied steps are skipped.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at `+s.timeType()+` NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range s.migrations() {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", m.version, m.name, err)
		}
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`),
		m.version, m.name, time.Now().UTC().Truncate(time.Second),
	)
	if err != nil {
		return fmt.Errorf("recording migration %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", m.version, err)
	}
	return nil
}

// SchemaVersion returns the highest applied migration version, 0 for a
// fresh database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.GetContext(ctx, &version, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
