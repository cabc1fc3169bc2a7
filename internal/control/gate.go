// Package control implements the externally owned enable/disable gate for
// recording, represented by a marker file in the shared data directory.
package control

import (
	"fmt"
	"os"
	"path/filepath"
)

// MarkerFile is the enable marker name. Its presence means recording is
// enabled. Any external actor may create or remove it; the capture loop only
// polls it.
const MarkerFile = "record"

// Gate reads and toggles the enable marker.
type Gate struct {
	path string
}

// NewGate returns a Gate rooted in the shared data directory.
func NewGate(dataDir string) *Gate {
	return &Gate{path: filepath.Join(dataDir, MarkerFile)}
}

// Enabled reports whether recording is enabled. A missing marker, missing
// directory or unreadable path all mean disabled; absence is a well-defined
// state, never an error.
func (g *Gate) Enabled() bool {
	info, err := os.Stat(g.path)
	return err == nil && !info.IsDir()
}

// SetEnabled creates or removes the marker.
func (g *Gate) SetEnabled(enabled bool) error {
	if enabled {
		f, err := os.Create(g.path)
		if err != nil {
			return fmt.Errorf("create enable marker: %w", err)
		}
		return f.Close()
	}
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove enable marker: %w", err)
	}
	return nil
}
