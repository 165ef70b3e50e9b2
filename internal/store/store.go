// Package store persists time-stamped sensor snapshots into the relational
// schema (tables room, weather, electricity). Rows are append-only and
// deduplicated per (time, id): recording the same pair twice is a benign
// no-op, never a second row.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store { return &Store{db: db} }

// RoomReading is one observed room per poll cycle. Nil metric pointers mean
// "not reported this cycle" and are stored as NULL, never as zero.
type RoomReading struct {
	Time              time.Time `db:"time" json:"time"`
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Temperature       *float64  `db:"temperature" json:"temperature"`
	TemperatureTarget *float64  `db:"temperature_target" json:"temperature_target"`
	Humidity          *float64  `db:"humidity" json:"humidity"`
	Light             *bool     `db:"light" json:"light"`
	Shading           *float64  `db:"shading" json:"shading"`
	Valve             *float64  `db:"valve" json:"valve"`
	Ventilation       *bool     `db:"ventilation" json:"ventilation"`
	Presence          *bool     `db:"presence" json:"presence"`
}

// ElectricityReading is one per-phase energy observation.
type ElectricityReading struct {
	Time     time.Time `db:"time" json:"time"`
	ID       string    `db:"id" json:"id"`
	Name     string    `db:"name" json:"name"`
	EnergyL1 *float64  `db:"energy_l1" json:"energy_l1"`
	EnergyL2 *float64  `db:"energy_l2" json:"energy_l2"`
	EnergyL3 *float64  `db:"energy_l3" json:"energy_l3"`
}

// Snapshot is one poll cycle: every reading shares a single capture time so
// cross-entity joins at that instant stay consistent.
type Snapshot struct {
	Time        time.Time
	Rooms       []RoomReading
	Electricity []ElectricityReading
}

// SnapshotResult reports how a cycle landed in the store.
type SnapshotResult struct {
	Inserted int
	Skipped  int
}

// CaptureTime normalizes a reading timestamp: zero means "now", and values
// are truncated to whole seconds in UTC.
func CaptureTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Second)
}

// RecordRoom inserts one room reading. The false return is the duplicate
// skip: a row for the same (time, id) already exists and stays untouched.
func (s *Store) RecordRoom(ctx context.Context, r RoomReading) (bool, error) {
	return recordRoom(ctx, s.db, r)
}

func recordRoom(ctx context.Context, q sqlx.ExtContext, r RoomReading) (bool, error) {
	r.Time = CaptureTime(r.Time)
	res, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO room (time, id, name, temperature, temperature_target, humidity, light, shading, valve, ventilation, presence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (time, id) DO NOTHING`),
		r.Time, r.ID, r.Name, r.Temperature, r.TemperatureTarget, r.Humidity,
		r.Light, r.Shading, r.Valve, r.Ventilation, r.Presence,
	)
	if err != nil {
		return false, fmt.Errorf("inserting room reading %s: %w", r.ID, err)
	}
	return inserted(res)
}

// RecordElectricity inserts one per-phase energy reading, deduplicated like
// room readings.
func (s *Store) RecordElectricity(ctx context.Context, e ElectricityReading) (bool, error) {
	return recordElectricity(ctx, s.db, e)
}

func recordElectricity(ctx context.Context, q sqlx.ExtContext, e ElectricityReading) (bool, error) {
	e.Time = CaptureTime(e.Time)
	res, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO electricity (time, id, name, energy_l1, energy_l2, energy_l3)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (time, id) DO NOTHING`),
		e.Time, e.ID, e.Name, e.EnergyL1, e.EnergyL2, e.EnergyL3,
	)
	if err != nil {
		return false, fmt.Errorf("inserting electricity reading %s: %w", e.ID, err)
	}
	return inserted(res)
}

// RecordWeatherMark inserts the bare time marker into the weather table.
func (s *Store) RecordWeatherMark(ctx context.Context, t time.Time) (bool, error) {
	return recordWeatherMark(ctx, s.db, t)
}

func recordWeatherMark(ctx context.Context, q sqlx.ExtContext, t time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO weather (time) VALUES (?)
		ON CONFLICT (time) DO NOTHING`),
		CaptureTime(t),
	)
	if err != nil {
		return false, fmt.Errorf("inserting weather mark: %w", err)
	}
	return inserted(res)
}

// RecordSnapshot persists a whole poll cycle in one transaction. Every row is
// stamped with the snapshot time, so a cycle never straddles two capture
// timestamps. Re-recording a cycle for an already-persisted second skips all
// rows and reports them in SnapshotResult.Skipped.
func (s *Store) RecordSnapshot(ctx context.Context, snap Snapshot) (SnapshotResult, error) {
	var result SnapshotResult
	t := CaptureTime(snap.Time)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range snap.Rooms {
		r.Time = t
		ok, err := recordRoom(ctx, tx, r)
		if err != nil {
			return result, err
		}
		result.count(ok)
	}
	for _, e := range snap.Electricity {
		e.Time = t
		ok, err := recordElectricity(ctx, tx, e)
		if err != nil {
			return result, err
		}
		result.count(ok)
	}
	if _, err := recordWeatherMark(ctx, tx, t); err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("committing snapshot: %w", err)
	}
	return result, nil
}

func (r *SnapshotResult) count(inserted bool) {
	if inserted {
		r.Inserted++
	} else {
		r.Skipped++
	}
}

func inserted(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}
