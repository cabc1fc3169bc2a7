package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Metadata is the sidecar record written once a session finalizes. It exists
// if and only if the payload rename completed, so consumers treat the pair as
// the unit of validity.
type Metadata struct {
	SoundFile  string    `json:"sound_file"`
	Basename   string    `json:"basename"`
	JSONFile   string    `json:"json_file"`
	Timestamp  time.Time `json:"timestamp"`
	Length     float64   `json:"length"` // seconds
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
	Threshold  float64   `json:"threshold"` // detection threshold in effect
}

// writeMetadata persists the sidecar next to the payload.
func writeMetadata(path string, m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads one sidecar file.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", filepath.Base(path), err)
	}
	return &m, nil
}

// ListRecordings returns the completed recordings in dataDir, newest first.
// Sidecars without a payload (and the reverse) are skipped: a recording is
// only valid when both halves of the finalize transaction are present.
func ListRecordings(dataDir string) ([]Metadata, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	var recordings []Metadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), MetadataSuffix) {
			continue
		}
		if entry.Name() == "threshold"+MetadataSuffix {
			continue
		}

		m, err := LoadMetadata(filepath.Join(dataDir, entry.Name()))
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(dataDir, m.SoundFile)); err != nil {
			continue
		}
		recordings = append(recordings, *m)
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].Timestamp.After(recordings[j].Timestamp)
	})
	return recordings, nil
}

// FindRecording looks up a completed recording by basename.
func FindRecording(dataDir, basename string) (*Metadata, error) {
	recordings, err := ListRecordings(dataDir)
	if err != nil {
		return nil, err
	}
	for i := range recordings {
		if recordings[i].Basename == basename {
			return &recordings[i], nil
		}
	}
	return nil, fmt.Errorf("recording not found: %s", basename)
}
