package store

import (
	"context"
	"fmt"
	"time"
)

// LatestRooms returns the most recent reading per room id.
func (s *Store) LatestRooms(ctx context.Context) ([]RoomReading, error) {
	var out []RoomReading
	err := s.db.SelectContext(ctx, &out, `
		SELECT r.time, r.id, r.name, r.temperature, r.temperature_target, r.humidity,
		       r.light, r.shading, r.valve, r.ventilation, r.presence
		FROM room r
		JOIN (SELECT id, MAX(time) AS time FROM room GROUP BY id) latest
		  ON latest.id = r.id AND latest.time = r.time
		ORDER BY r.name, r.id`)
	if err != nil {
		return nil, fmt.Errorf("querying latest rooms: %w", err)
	}
	return out, nil
}

// RoomHistory returns readings for one room since a point in time, oldest
// first, capped at limit rows.
func (s *Store) RoomHistory(ctx context.Context, id string, since time.Time, limit int) ([]RoomReading, error) {
	var out []RoomReading
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT time, id, name, temperature, temperature_target, humidity,
		       light, shading, valve, ventilation, presence
		FROM room
		WHERE id = ? AND time >= ?
		ORDER BY time ASC
		LIMIT ?`),
		id, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying room history %s: %w", id, err)
	}
	return out, nil
}

// LatestElectricity returns the most recent reading per electricity entity.
func (s *Store) LatestElectricity(ctx context.Context) ([]ElectricityReading, error) {
	var out []ElectricityReading
	err := s.db.SelectContext(ctx, &out, `
		SELECT e.time, e.id, e.name, e.energy_l1, e.energy_l2, e.energy_l3
		FROM electricity e
		JOIN (SELECT id, MAX(time) AS time FROM electricity GROUP BY id) latest
		  ON latest.id = e.id AND latest.time = e.time
		ORDER BY e.name, e.id`)
	if err != nil {
		return nil, fmt.Errorf("querying latest electricity: %w", err)
	}
	return out, nil
}

// ElectricityHistory returns readings for one entity since a point in time.
func (s *Store) ElectricityHistory(ctx context.Context, id string, since time.Time, limit int) ([]ElectricityReading, error) {
	var out []ElectricityReading
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT time, id, name, energy_l1, energy_l2, energy_l3
		FROM electricity
		WHERE id = ? AND time >= ?
		ORDER BY time ASC
		LIMIT ?`),
		id, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying electricity history %s: %w", id, err)
	}
	return out, nil
}
