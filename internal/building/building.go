// Package building maps Miniserver control states onto the room and
// electricity entities the snapshot store persists. State values arrive by
// UUID from whatever source bridges the controller; rooms aggregate them
// into per-metric values, with absence kept distinct from zero throughout.
package building

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shadowhunt/loxone-monitor/internal/store"
)

// state holds the last reported value for one control state UUID. A scale
// above zero rounds incoming values to the nearest multiple.
type state struct {
	value *float64
	scale float64
}

func (st *state) set(v float64) {
	if st.scale > 0 {
		v = math.Round(v/st.scale) * st.scale
	}
	st.value = &v
}

// mean aggregates the non-absent state values; nil when none reported.
type mean struct {
	states []*state
}

func (a mean) value() *float64 {
	var sum float64
	var n int
	for _, st := range a.states {
		if st.value != nil {
			sum += *st.value
			n++
		}
	}
	if n == 0 {
		return nil
	}
	v := sum / float64(n)
	return &v
}

// anyOn is true when any reported state is non-zero; nil when none reported.
type anyOn struct {
	states []*state
}

func (a anyOn) value() *bool {
	var result *bool
	for _, st := range a.states {
		if st.value == nil {
			continue
		}
		on := *st.value != 0
		if result == nil || on {
			result = &on
		}
	}
	return result
}

// Room aggregates the control states assigned to one controller room.
type Room struct {
	ID   string
	Name string

	temperature       mean
	temperatureTarget mean
	humidity          mean
	shading           mean
	valve             mean
	light             anyOn
	ventilation       anyOn
	presence          anyOn
}

// Meter is one electricity entity with up to three phases.
type Meter struct {
	ID     string
	Name   string
	phases [3]*state
}

// Building is the registry of all known state UUIDs plus the entities built
// on top of them. Update and Snapshot may be called from different
// goroutines.
type Building struct {
	Name         string
	Serial       string
	LastModified string

	mu        sync.Mutex
	registry  map[string]*state
	rooms     []*Room
	meters    []*Meter
	populated bool
}

// New builds the entity model from a parsed structure file. Controls map as
// in the controller: IRoomControllerV2 drives temperature, target, humidity
// and ventilation; Switch subcontrols of LightControllerV2 drive light;
// PresenceDetector drives presence; Jalousie drives shading; Meter controls
// become electricity entities.
func New(sf *StructureFile) (*Building, error) {
	b := &Building{
		Name:         sf.MsInfo.MsName,
		Serial:       sf.MsInfo.SerialNr,
		LastModified: sf.LastModified,
		registry:     make(map[string]*state),
	}

	for uuid, place := range sf.Rooms {
		room := &Room{ID: placeID(uuid, place), Name: place.Name}
		for _, control := range sf.Controls {
			if control.Room != uuid {
				continue
			}
			if err := b.wireControl(room, control); err != nil {
				return nil, err
			}
		}
		b.rooms = append(b.rooms, room)
	}

	for uuid, control := range sf.Controls {
		if control.Type != "Meter" {
			continue
		}
		m := &Meter{ID: uuid, Name: control.Name}
		// Three-phase meters expose phase1..phase3; single-phase ones
		// expose a bare actual state, stored as the first phase.
		if _, ok := control.States["phase1"]; ok {
			for i, key := range []string{"phase1", "phase2", "phase3"} {
				sid, ok := control.States[key]
				if !ok {
					continue
				}
				st, err := b.register(sid, 0)
				if err != nil {
					return nil, err
				}
				m.phases[i] = st
			}
		} else if sid, ok := control.States["actual"]; ok {
			st, err := b.register(sid, 0)
			if err != nil {
				return nil, err
			}
			m.phases[0] = st
		}
		b.meters = append(b.meters, m)
	}

	sort.Slice(b.rooms, func(i, j int) bool { return b.rooms[i].Name < b.rooms[j].Name })
	sort.Slice(b.meters, func(i, j int) bool { return b.meters[i].Name < b.meters[j].Name })
	return b, nil
}

func (b *Building) wireControl(room *Room, control Control) error {
	add := func(agg *[]*state, stateName string, scale float64, c Control) error {
		id, ok := c.States[stateName]
		if !ok {
			return nil
		}
		st, err := b.register(id, scale)
		if err != nil {
			return err
		}
		*agg = append(*agg, st)
		return nil
	}

	switch control.Type {
	case "IRoomControllerV2":
		if err := add(&room.temperature.states, "tempActual", 0.5, control); err != nil {
			return err
		}
		if err := add(&room.temperatureTarget.states, "tempTarget", 0.5, control); err != nil {
			return err
		}
		if err := add(&room.humidity.states, "humidityActual", 0.5, control); err != nil {
			return err
		}
		if err := add(&room.ventilation.states, "openWindow", 0, control); err != nil {
			return err
		}
	case "LightControllerV2":
		for _, sub := range control.SubControls {
			if sub.Type != "Switch" {
				continue
			}
			if err := add(&room.light.states, "active", 0, sub); err != nil {
				return err
			}
		}
	case "PresenceDetector":
		if err := add(&room.presence.states, "active", 0, control); err != nil {
			return err
		}
	case "Jalousie":
		if err := add(&room.shading.states, "position", 1, control); err != nil {
			return err
		}
	}
	return nil
}

func (b *Building) register(id string, scale float64) (*state, error) {
	if _, exists := b.registry[id]; exists {
		return nil, fmt.Errorf("state %s registered twice", id)
	}
	st := &state{scale: scale}
	b.registry[id] = st
	return st, nil
}

// Update feeds one state value into the registry. Unknown UUIDs are ignored
// and reported as false; the structure file simply does not monitor them.
func (b *Building) Update(id string, value float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.registry[id]
	if !ok {
		return false
	}
	st.set(value)
	b.populated = true
	return true
}

// Populated reports whether any state value has arrived yet.
func (b *Building) Populated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.populated
}

// StateIDs lists every registered state UUID, sorted.
func (b *Building) StateIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.registry))
	for id := range b.registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot captures every entity at time t. The second return is false while
// no state values have arrived yet, in which case the cycle should be
// skipped rather than persist an all-null snapshot.
func (b *Building) Snapshot(t time.Time) (store.Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.populated {
		return store.Snapshot{}, false
	}

	snap := store.Snapshot{Time: t}
	for _, room := range b.rooms {
		snap.Rooms = append(snap.Rooms, store.RoomReading{
			Time:              t,
			ID:                room.ID,
			Name:              room.Name,
			Temperature:       room.temperature.value(),
			TemperatureTarget: room.temperatureTarget.value(),
			Humidity:          room.humidity.value(),
			Light:             room.light.value(),
			Shading:           room.shading.value(),
			Valve:             room.valve.value(),
			Ventilation:       room.ventilation.value(),
			Presence:          room.presence.value(),
		})
	}
	for _, m := range b.meters {
		snap.Electricity = append(snap.Electricity, store.ElectricityReading{
			Time:     t,
			ID:       m.ID,
			Name:     m.Name,
			EnergyL1: phaseValue(m.phases[0]),
			EnergyL2: phaseValue(m.phases[1]),
			EnergyL3: phaseValue(m.phases[2]),
		})
	}
	return snap, true
}

func phaseValue(st *state) *float64 {
	if st == nil || st.value == nil {
		return nil
	}
	v := *st.value
	return &v
}

// Rooms in the structure file carry their UUID twice, as map key and uuid
// field; the field wins when present.
func placeID(key string, p Place) string {
	if p.UUID != "" {
		return p.UUID
	}
	return key
}
