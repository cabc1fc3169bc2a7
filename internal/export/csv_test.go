package export

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencapture/soundtrap/internal/audio"
	"github.com/opencapture/soundtrap/internal/recording"
)

// writeTestWAV writes a finalized stereo WAV with the given samples.
func writeTestWAV(t *testing.T, dir string, samples []int16) string {
	t.Helper()
	path := filepath.Join(dir, "test.wav")

	w, err := recording.NewWAVWriter(path, 8000, 2)
	if err != nil {
		t.Fatal(err)
	}
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWriteCSVSamples(t *testing.T) {
	samples := []int16{100, -100, 200, -200, 300, -300}
	path := writeTestWAV(t, t.TempDir(), samples)

	var buf strings.Builder
	if err := WriteCSV(path, &buf, Options{}); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 { // header + 3 frames
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if lines[0] != "time_s,channel_1,channel_2" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ",100,-100") {
		t.Errorf("first frame = %q", lines[1])
	}
	if !strings.HasSuffix(lines[3], ",300,-300") {
		t.Errorf("last frame = %q", lines[3])
	}
}

func TestWriteCSVVolumeTable(t *testing.T) {
	// Four frames: one silent block, one constant-amplitude block.
	samples := []int16{0, 0, 0, 0, 8192, 8192, 8192, 8192}
	path := writeTestWAV(t, t.TempDir(), samples)

	var buf strings.Builder
	err := WriteCSV(path, &buf, Options{BlockFrames: 2, Metric: audio.MetricRMS})
	if err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	parts := strings.Split(buf.String(), "\n\n")
	if len(parts) != 2 {
		t.Fatalf("expected sample and volume tables separated by a blank line")
	}

	volLines := strings.Split(strings.TrimSpace(parts[1]), "\n")
	if len(volLines) != 3 { // header + 2 blocks
		t.Fatalf("volume table has %d lines, want 3:\n%s", len(volLines), parts[1])
	}
	if volLines[0] != "block,time_s,rms" {
		t.Errorf("volume header = %q", volLines[0])
	}
	if !strings.HasPrefix(volLines[1], "0,0.000000,0.000000") {
		t.Errorf("silent block row = %q", volLines[1])
	}
	if strings.HasSuffix(volLines[2], ",0.000000") {
		t.Errorf("active block reported zero volume: %q", volLines[2])
	}
}

func TestExportFile(t *testing.T) {
	dir := t.TempDir()
	wavPath := writeTestWAV(t, dir, []int16{1, 2, 3, 4})

	csvPath, err := ExportFile(wavPath, Options{})
	if err != nil {
		t.Fatalf("ExportFile failed: %v", err)
	}
	if csvPath != filepath.Join(dir, "test.csv") {
		t.Errorf("csv path = %q", csvPath)
	}
	if _, err := os.Stat(csvPath); err != nil {
		t.Errorf("csv file missing: %v", err)
	}
}

func TestExportFileMissingInput(t *testing.T) {
	if _, err := ExportFile(filepath.Join(t.TempDir(), "none.wav"), Options{}); err == nil {
		t.Error("ExportFile accepted a missing input")
	}
}
