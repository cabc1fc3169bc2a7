package recording

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func sineSamples(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(12000 * math.Sin(2*math.Pi*float64(i%100)/100))
	}
	return samples
}

func samplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

func TestWAVWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")

	w, err := NewWAVWriter(path, 8000, 2)
	if err != nil {
		t.Fatalf("NewWAVWriter failed: %v", err)
	}

	samples := sineSamples(8000)
	if _, err := w.Write(samplesToBytes(samples)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := w.Frames(); got != 2000 {
		t.Errorf("Frames() = %d, want 2000", got)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	readSamples, info, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if info.SampleRate != 8000 || info.Channels != 2 {
		t.Errorf("info = %+v, want 8000 Hz / 2 ch", info)
	}
	if info.Frames != 2000 {
		t.Errorf("frames = %d, want 2000", info.Frames)
	}
	if info.Duration != 0.25 {
		t.Errorf("duration = %f, want 0.25", info.Duration)
	}
	if len(readSamples) != len(samples) {
		t.Fatalf("sample count = %d, want %d", len(readSamples), len(samples))
	}
	for i := range samples {
		if readSamples[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, readSamples[i], samples[i])
		}
	}
}

func TestWAVHeaderDeclaredLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")

	w, err := NewWAVWriter(path, 8000, 1)
	if err != nil {
		t.Fatal(err)
	}
	payload := samplesToBytes(sineSamples(1234))
	if _, err := w.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// Declared data length equals written bytes, and file size is header + data.
	declared := binary.LittleEndian.Uint32(data[40:])
	if int(declared) != len(payload) {
		t.Errorf("declared data size = %d, want %d", declared, len(payload))
	}
	if len(data) != 44+len(payload) {
		t.Errorf("file size = %d, want %d", len(data), 44+len(payload))
	}
	riffSize := binary.LittleEndian.Uint32(data[4:])
	if int(riffSize) != 36+len(payload) {
		t.Errorf("RIFF size = %d, want %d", riffSize, 36+len(payload))
	}
}

func TestReadWAVRejectsUnfinalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.tmp")

	w, err := NewWAVWriter(path, 8000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(samplesToBytes(sineSamples(100))); err != nil {
		t.Fatal(err)
	}
	// Abort leaves the placeholder header in place.
	if err := w.Abort(); err != nil {
		t.Fatal(err)
	}

	if _, _, err := ReadWAV(path); err == nil {
		t.Error("ReadWAV accepted an unfinalized payload")
	}
}

func TestReadWAVRejectsTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")

	w, err := NewWAVWriter(path, 8000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(samplesToBytes(sineSamples(1000))); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-100], 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := ReadWAV(path); err == nil {
		t.Error("ReadWAV accepted a truncated payload")
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadWAV(path); err == nil {
		t.Error("ReadWAV accepted garbage")
	}
}

func TestWAVWriterEmptyRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")

	w, err := NewWAVWriter(path, 8000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize of empty recording failed: %v", err)
	}

	samples, info, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if len(samples) != 0 || info.Frames != 0 {
		t.Errorf("empty recording decoded to %d samples, %d frames", len(samples), info.Frames)
	}
}
