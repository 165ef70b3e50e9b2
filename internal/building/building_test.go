package building

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const structureJSON = `{
	"lastModified": "2024-03-01 10:00:00",
	"msInfo": {"msName": "Haus", "serialNr": "504F11223344"},
	"globalStates": {"operatingMode": "st-opmode"},
	"rooms": {
		"room-a": {"uuid": "room-a", "name": "Living"},
		"room-b": {"uuid": "room-b", "name": "Attic"}
	},
	"controls": {
		"ctrl-heat": {
			"type": "IRoomControllerV2", "name": "Heating Living", "room": "room-a",
			"states": {
				"tempActual": "st-temp-a",
				"tempTarget": "st-target-a",
				"humidityActual": "st-hum-a",
				"openWindow": "st-window-a"
			}
		},
		"ctrl-light": {
			"type": "LightControllerV2", "name": "Lights Living", "room": "room-a",
			"states": {"activeMoods": "st-moods-a"},
			"subControls": {
				"sw-1": {"type": "Switch", "name": "Ceiling", "states": {"active": "st-light-a1"}},
				"sw-2": {"type": "Switch", "name": "Corner", "states": {"active": "st-light-a2"}},
				"dim-1": {"type": "Dimmer", "name": "Shelf", "states": {"position": "st-dim-a"}}
			}
		},
		"ctrl-shade": {
			"type": "Jalousie", "name": "Blind Living", "room": "room-a",
			"states": {"position": "st-shade-a"}
		},
		"ctrl-presence": {
			"type": "PresenceDetector", "name": "Presence Living", "room": "room-a",
			"states": {"active": "st-pres-a"}
		},
		"meter-1": {
			"type": "Meter", "name": "Main",
			"states": {"phase1": "st-p1", "phase2": "st-p2", "phase3": "st-p3"}
		},
		"meter-2": {
			"type": "Meter", "name": "Boiler",
			"states": {"actual": "st-act"}
		}
	}
}`

func testBuilding(t *testing.T) *Building {
	t.Helper()
	var sf StructureFile
	require.NoError(t, json.Unmarshal([]byte(structureJSON), &sf))
	b, err := New(&sf)
	require.NoError(t, err)
	return b
}

func TestNewBuilding(t *testing.T) {
	b := testBuilding(t)

	assert.Equal(t, "Haus", b.Name)
	assert.Equal(t, "504F11223344", b.Serial)
	require.Len(t, b.rooms, 2)
	assert.Equal(t, "Attic", b.rooms[0].Name)
	assert.Equal(t, "Living", b.rooms[1].Name)
	require.Len(t, b.meters, 2)
	assert.Equal(t, "Boiler", b.meters[0].Name)
	assert.Equal(t, "Main", b.meters[1].Name)

	// 4 heating states, 2 switches, jalousie, presence, 3+1 meter phases
	assert.Len(t, b.StateIDs(), 12)
}

func TestUpdateUnknownState(t *testing.T) {
	b := testBuilding(t)
	assert.False(t, b.Update("st-nope", 1))
	assert.False(t, b.Populated(), "unknown states must not mark the building populated")
}

func TestSnapshotBeforeFirstUpdate(t *testing.T) {
	b := testBuilding(t)
	_, ok := b.Snapshot(time.Now())
	assert.False(t, ok)
}

func TestSnapshotRoomAggregates(t *testing.T) {
	b := testBuilding(t)

	assert.True(t, b.Update("st-temp-a", 21.3))   // rounds to 21.5
	assert.True(t, b.Update("st-target-a", 22.2)) // rounds to 22.0
	assert.True(t, b.Update("st-hum-a", 47.26))   // rounds to 47.5
	assert.True(t, b.Update("st-window-a", 0))
	assert.True(t, b.Update("st-light-a1", 0))
	assert.True(t, b.Update("st-light-a2", 1))
	assert.True(t, b.Update("st-shade-a", 47.6)) // rounds to 48
	assert.True(t, b.Populated())

	tm := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	snap, ok := b.Snapshot(tm)
	require.True(t, ok)
	require.Len(t, snap.Rooms, 2)

	attic, living := snap.Rooms[0], snap.Rooms[1]

	assert.Equal(t, "room-b", attic.ID)
	assert.Nil(t, attic.Temperature)
	assert.Nil(t, attic.Light)
	assert.Nil(t, attic.Presence)

	assert.Equal(t, "room-a", living.ID)
	assert.Equal(t, "Living", living.Name)
	assert.True(t, living.Time.Equal(tm))
	require.NotNil(t, living.Temperature)
	assert.Equal(t, 21.5, *living.Temperature)
	require.NotNil(t, living.TemperatureTarget)
	assert.Equal(t, 22.0, *living.TemperatureTarget)
	require.NotNil(t, living.Humidity)
	assert.Equal(t, 47.5, *living.Humidity)
	require.NotNil(t, living.Shading)
	assert.Equal(t, 48.0, *living.Shading)
	require.NotNil(t, living.Light)
	assert.True(t, *living.Light, "one active switch turns the room light on")
	require.NotNil(t, living.Ventilation)
	assert.False(t, *living.Ventilation)
	assert.Nil(t, living.Presence, "never-reported detector stays absent")
	assert.Nil(t, living.Valve)
}

func TestSnapshotLatestValueWins(t *testing.T) {
	b := testBuilding(t)
	b.Update("st-temp-a", 20)
	b.Update("st-temp-a", 24)

	snap, ok := b.Snapshot(time.Now())
	require.True(t, ok)
	living := snap.Rooms[1]
	require.NotNil(t, living.Temperature)
	assert.Equal(t, 24.0, *living.Temperature)
}

func TestSnapshotElectricity(t *testing.T) {
	b := testBuilding(t)
	b.Update("st-p1", 1.1)
	b.Update("st-p2", 2.2)
	b.Update("st-act", 5.5)

	snap, ok := b.Snapshot(time.Now())
	require.True(t, ok)
	require.Len(t, snap.Electricity, 2)

	boiler, main := snap.Electricity[0], snap.Electricity[1]

	assert.Equal(t, "meter-2", boiler.ID)
	require.NotNil(t, boiler.EnergyL1)
	assert.Equal(t, 5.5, *boiler.EnergyL1)
	assert.Nil(t, boiler.EnergyL2)
	assert.Nil(t, boiler.EnergyL3)

	assert.Equal(t, "meter-1", main.ID)
	require.NotNil(t, main.EnergyL1)
	assert.Equal(t, 1.1, *main.EnergyL1)
	require.NotNil(t, main.EnergyL2)
	assert.Equal(t, 2.2, *main.EnergyL2)
	assert.Nil(t, main.EnergyL3, "unreported phase reads back absent")
}

func TestNewRejectsDuplicateStates(t *testing.T) {
	var sf StructureFile
	require.NoError(t, json.Unmarshal([]byte(structureJSON), &sf))
	// second control claiming an already-registered state UUID
	sf.Controls["ctrl-dup"] = Control{
		Type: "PresenceDetector", Room: "room-b",
		States: map[string]string{"active": "st-pres-a"},
	}
	_, err := New(&sf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LoxAPP3.json")
	require.NoError(t, os.WriteFile(path, []byte(structureJSON), 0o644))

	b, raw, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Haus", b.Name)
	assert.JSONEq(t, structureJSON, string(raw))

	_, _, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
