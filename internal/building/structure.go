package building

import (
	"encoding/json"
	"fmt"
	"os"
)

// StructureFile is the subset of the Miniserver structure file (LoxAPP3.json)
// the monitor cares about. The file itself is obtained out-of-band; talking
// to the Miniserver is not this program's job.
type StructureFile struct {
	LastModified string             `json:"lastModified"`
	MsInfo       MsInfo             `json:"msInfo"`
	GlobalStates map[string]string  `json:"globalStates"`
	Rooms        map[string]Place   `json:"rooms"`
	Controls     map[string]Control `json:"controls"`
}

type MsInfo struct {
	MsName   string `json:"msName"`
	SerialNr string `json:"serialNr"`
}

type Place struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

type Control struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Room        string             `json:"room"`
	States      map[string]string  `json:"states"`
	SubControls map[string]Control `json:"subControls"`
}

// LoadFile reads and parses a structure file from disk, returning the raw
// bytes alongside so the caller can keep a backup copy.
func LoadFile(path string) (*Building, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading structure file: %w", err)
	}
	var sf StructureFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return nil, nil, fmt.Errorf("parsing structure file: %w", err)
	}
	b, err := New(&sf)
	if err != nil {
		return nil, nil, err
	}
	return b, raw, nil
}
