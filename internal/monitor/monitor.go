// Package monitor runs the persist cycle: on every interval tick it takes a
// building snapshot at one second-truncated timestamp and writes it to the
// store in a single transaction.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shadowhunt/loxone-monitor/internal/building"
	"github.com/shadowhunt/loxone-monitor/internal/store"
)

type Monitor struct {
	building *building.Building
	store    *store.Store
	interval time.Duration
}

func New(b *building.Building, s *store.Store, interval time.Duration) *Monitor {
	return &Monitor{building: b, store: s, interval: interval}
}

// Run persists snapshots until the context is cancelled. Failed cycles are
// logged and retried on the next tick; the loop only ends on shutdown.
func (m *Monitor) Run(ctx context.Context) error {
	log.Info().Dur("interval", m.interval).Msg("persist loop running")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("persist loop stopped")
			return nil
		case now := <-ticker.C:
			if _, err := m.RunOnce(ctx, now); err != nil {
				log.Error().Err(err).Msg("persist cycle failed")
			}
		}
	}
}

// RunOnce executes a single persist cycle at the given capture time. Cycles
// before the first state update are skipped: an all-null snapshot says
// nothing about the building.
func (m *Monitor) RunOnce(ctx context.Context, now time.Time) (store.SnapshotResult, error) {
	t := store.CaptureTime(now)
	snap, ok := m.building.Snapshot(t)
	if !ok {
		log.Info().Msg("building not yet populated, skipping cycle")
		return store.SnapshotResult{}, nil
	}

	result, err := m.store.RecordSnapshot(ctx, snap)
	if err != nil {
		return result, err
	}
	log.Info().
		Time("time", t).
		Int("inserted", result.Inserted).
		Int("skipped", result.Skipped).
		Msg("snapshot persisted")
	return result, nil
}
