package calibrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ThresholdFile is the calibration file name inside the data directory. Its
// presence is the "calibrated" marker shared with external consumers.
const ThresholdFile = "threshold.json"

// ErrNotCalibrated is returned by Load when no calibration exists yet.
var ErrNotCalibrated = errors.New("no calibration present")

// Store persists the calibration result. Writes replace the file wholesale;
// there is no partial update.
type Store struct {
	path string
}

// NewStore returns a Store rooted in the shared data directory.
func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, ThresholdFile)}
}

// Path returns the calibration file path.
func (s *Store) Path() string {
	return s.path
}

// Calibrated reports whether a parseable calibration is present.
func (s *Store) Calibrated() bool {
	_, err := s.Load()
	return err == nil
}

// Load reads the current calibration. A missing or unreadable file maps to
// ErrNotCalibrated; external writers may replace the file at any time.
func (s *Store) Load() (*Threshold, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNotCalibrated
	}
	if err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}

	var t Threshold
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrNotCalibrated, filepath.Base(s.path), err)
	}
	if t.Threshold <= 0 {
		return nil, ErrNotCalibrated
	}
	return &t, nil
}

// Save atomically replaces the stored calibration via a temp file + rename,
// so readers never observe a torn write.
func (s *Store) Save(t *Threshold) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write calibration: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace calibration: %w", err)
	}
	return nil
}
