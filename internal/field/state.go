package field

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pbjrag/internal/logging"
	"pbjrag/internal/types"
)

// stateVersion is bumped whenever the snapshot layout changes.
const stateVersion = 1

// State is the serialized form of a container. Syntax nodes are not saved,
// so restored fragments carry no tree.
type State struct {
	Version   int              `json:"version"`
	SavedAt   time.Time        `json:"saved_at"`
	Coherence float64          `json:"coherence"`
	Fragments []types.Fragment `json:"fragments"`
	Patterns  []types.Pattern  `json:"patterns"`
	Compost   []CompostEntry   `json:"compost"`
}

// Snapshot copies the container into a State.
func (c *Container) Snapshot() State {
	coh := c.CalculateFieldCoherence()
	return State{
		Version:   stateVersion,
		SavedAt:   c.now(),
		Coherence: coh,
		Fragments: c.Fragments(nil),
		Patterns:  c.Patterns(nil),
		Compost:   c.CompostEntries(),
	}
}

// SaveState writes the snapshot as JSON to path, creating parent directories.
func (c *Container) SaveState(path string) error {
	data, err := json.MarshalIndent(c.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode field state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write field state: %w", err)
	}
	logging.FieldDebug("saved field state to %s", path)
	return nil
}

// LoadState reads a snapshot written by SaveState into a new container.
func LoadState(path string, opts ...Option) (*Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode field state: %w", err)
	}
	if st.Version != stateVersion {
		return nil, fmt.Errorf("unsupported field state version %d", st.Version)
	}
	c := NewContainer(opts...)
	c.fragments = st.Fragments
	c.patterns = st.Patterns
	c.compost = st.Compost
	return c, nil
}
