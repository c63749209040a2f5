package grid

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Snapshot is the on-disk description of a grid's starting state.
type Snapshot struct {
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Type     string `yaml:"type"`
	Occupied []Rect `yaml:"occupied"`
}

// LoadSnapshot reads a YAML grid snapshot and builds a MemoryGrid from it.
func LoadSnapshot(path string) (*MemoryGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grid file: %w", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes a YAML grid snapshot.
func ParseSnapshot(data []byte) (*MemoryGrid, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse grid yaml: %w", err)
	}
	return s.Build()
}

// Build materialises the snapshot.
func (s Snapshot) Build() (*MemoryGrid, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("grid size %dx%d must be positive", s.Width, s.Height)
	}
	g := NewMemoryGrid(s.Width, s.Height).WithType(s.Type)
	for _, r := range s.Occupied {
		if !g.Block(r) {
			return nil, fmt.Errorf("occupied rect %s is out of bounds or overlaps another", r)
		}
	}
	return g, nil
}

// SnapshotOf captures the current state of any Grid.
func SnapshotOf(g Grid) Snapshot {
	s := Snapshot{
		Width:    g.Width(),
		Height:   g.Height(),
		Occupied: g.Footprints(),
	}
	if t, ok := g.(Typed); ok {
		s.Type = t.Type()
	}
	return s
}
