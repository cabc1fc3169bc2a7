package calibrate

import (
	"errors"
	"testing"
)

func TestDeriveMidpoint(t *testing.T) {
	threshold, err := Derive([]float64{0.01, 0.01}, []float64{0.09, 0.11}, Options{})
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	if threshold.Baseline != 0.01 {
		t.Errorf("baseline = %f, want 0.01", threshold.Baseline)
	}
	if threshold.Trigger != 0.1 {
		t.Errorf("trigger = %f, want 0.1", threshold.Trigger)
	}
	// Midpoint sits strictly between the two levels.
	if threshold.Threshold <= threshold.Baseline || threshold.Threshold >= threshold.Trigger {
		t.Errorf("threshold %f not strictly between %f and %f",
			threshold.Threshold, threshold.Baseline, threshold.Trigger)
	}
	if threshold.CalibratedAt.IsZero() {
		t.Error("CalibratedAt not set")
	}
}

func TestDeriveScaled(t *testing.T) {
	threshold, err := Derive([]float64{0.01}, []float64{0.2}, Options{
		Derivation:  DerivationScaled,
		ScaleFactor: 5,
	})
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	if threshold.Threshold != 0.05 {
		t.Errorf("threshold = %f, want 0.05", threshold.Threshold)
	}
}

func TestDeriveScaledClampsToMidpoint(t *testing.T) {
	// Scale factor overshoots the trigger level; midpoint takes over.
	threshold, err := Derive([]float64{0.05}, []float64{0.2}, Options{
		Derivation:  DerivationScaled,
		ScaleFactor: 10,
	})
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	if threshold.Threshold <= 0.05 || threshold.Threshold >= 0.2 {
		t.Errorf("clamped threshold %f not strictly between baseline and trigger", threshold.Threshold)
	}
}

func TestDeriveRejectsQuietTrigger(t *testing.T) {
	_, err := Derive([]float64{0.05}, []float64{0.08}, Options{MinRatio: 3})
	if !errors.Is(err, ErrTriggerTooQuiet) {
		t.Errorf("error = %v, want ErrTriggerTooQuiet", err)
	}
}

func TestDeriveRejectsZeroTrigger(t *testing.T) {
	_, err := Derive([]float64{0}, []float64{0}, Options{})
	if !errors.Is(err, ErrTriggerTooQuiet) {
		t.Errorf("error = %v, want ErrTriggerTooQuiet", err)
	}
}

func TestDeriveRejectsEmptyPhases(t *testing.T) {
	if _, err := Derive(nil, []float64{0.1}, Options{}); !errors.Is(err, ErrNoSamples) {
		t.Errorf("error = %v, want ErrNoSamples", err)
	}
	if _, err := Derive([]float64{0.01}, nil, Options{}); !errors.Is(err, ErrNoSamples) {
		t.Errorf("error = %v, want ErrNoSamples", err)
	}
}

func TestDeriveNeverPersistOnRejection(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	existing := &Threshold{Baseline: 0.01, Trigger: 0.2, Threshold: 0.1}
	if err := store.Save(existing); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A rejected derivation is pure; the stored calibration stays intact.
	if _, err := Derive([]float64{0.05}, []float64{0.06}, Options{}); err == nil {
		t.Fatal("expected derivation to fail")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Threshold != existing.Threshold {
		t.Errorf("stored threshold changed: %f, want %f", loaded.Threshold, existing.Threshold)
	}
}
