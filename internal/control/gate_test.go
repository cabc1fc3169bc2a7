package control

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGateDefaultsDisabled(t *testing.T) {
	gate := NewGate(t.TempDir())
	if gate.Enabled() {
		t.Error("gate enabled without marker")
	}
}

func TestGateSetEnabled(t *testing.T) {
	dir := t.TempDir()
	gate := NewGate(dir)

	if err := gate.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) failed: %v", err)
	}
	if !gate.Enabled() {
		t.Error("gate not enabled after SetEnabled(true)")
	}
	if _, err := os.Stat(filepath.Join(dir, MarkerFile)); err != nil {
		t.Errorf("marker file missing: %v", err)
	}

	if err := gate.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled(false) failed: %v", err)
	}
	if gate.Enabled() {
		t.Error("gate still enabled after SetEnabled(false)")
	}
}

func TestGateDisableIdempotent(t *testing.T) {
	gate := NewGate(t.TempDir())

	if err := gate.SetEnabled(false); err != nil {
		t.Errorf("disabling an already-disabled gate failed: %v", err)
	}
}

func TestGateExternalMarker(t *testing.T) {
	// Any external actor may create the marker; the gate just observes it.
	dir := t.TempDir()
	gate := NewGate(dir)

	if err := os.WriteFile(filepath.Join(dir, MarkerFile), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !gate.Enabled() {
		t.Error("gate did not observe externally created marker")
	}

	if err := os.Remove(filepath.Join(dir, MarkerFile)); err != nil {
		t.Fatal(err)
	}
	if gate.Enabled() {
		t.Error("gate did not observe externally removed marker")
	}
}

func TestGateMissingDirectoryMeansDisabled(t *testing.T) {
	gate := NewGate(filepath.Join(t.TempDir(), "does-not-exist"))
	if gate.Enabled() {
		t.Error("gate enabled with missing data directory")
	}
}
