package recording

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// wavHeaderSize is the size of the canonical PCM WAV header.
const wavHeaderSize = 44

// WAVWriter streams S16LE PCM to a file. A placeholder header is written at
// open and patched with the true sizes at finalize, so very long sessions are
// never buffered in memory.
type WAVWriter struct {
	f          *os.File
	sampleRate int
	channels   int
	dataBytes  int64
}

// NewWAVWriter creates the file and reserves the header.
func NewWAVWriter(path string, sampleRate, channels int) (*WAVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}

	// Placeholder; Finalize rewrites it with the real sizes.
	if _, err := f.Write(make([]byte, wavHeaderSize)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("reserve wav header: %w", err)
	}

	return &WAVWriter{f: f, sampleRate: sampleRate, channels: channels}, nil
}

// Write appends raw S16LE sample data.
func (w *WAVWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.dataBytes += int64(n)
	return n, err
}

// Frames returns the number of frames written so far.
func (w *WAVWriter) Frames() int64 {
	return w.dataBytes / int64(2*w.channels)
}

// Finalize patches the header with the true data length and closes the file.
// Until Finalize succeeds the file is not a valid recording.
func (w *WAVWriter) Finalize() error {
	header := make([]byte, wavHeaderSize)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+w.dataBytes))
	copy(header[8:], "WAVE")

	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(header[20:], 1)  // PCM
	binary.LittleEndian.PutUint16(header[22:], uint16(w.channels))
	binary.LittleEndian.PutUint32(header[24:], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(w.sampleRate*w.channels*2))
	binary.LittleEndian.PutUint16(header[32:], uint16(w.channels*2))
	binary.LittleEndian.PutUint16(header[34:], 16) // bits per sample

	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(w.dataBytes))

	if _, err := w.f.WriteAt(header, 0); err != nil {
		_ = w.f.Close()
		return fmt.Errorf("patch wav header: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		return fmt.Errorf("sync wav file: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close wav file: %w", err)
	}
	return nil
}

// Abort closes the file without patching the header, leaving an invalid
// partial payload behind for diagnosis.
func (w *WAVWriter) Abort() error {
	return w.f.Close()
}

// WAVInfo describes a decoded WAV file.
type WAVInfo struct {
	SampleRate int
	Channels   int
	Frames     int
	Duration   float64 // seconds
}

// ReadWAV reads a finalized PCM WAV file into interleaved samples.
func ReadWAV(path string) ([]int16, *WAVInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read wav file: %w", err)
	}
	if len(data) < wavHeaderSize {
		return nil, nil, fmt.Errorf("wav file too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, nil, fmt.Errorf("not a wav file")
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return nil, nil, fmt.Errorf("unsupported wav layout")
	}
	if format := binary.LittleEndian.Uint16(data[20:]); format != 1 {
		return nil, nil, fmt.Errorf("unsupported wav format %d", format)
	}
	if bits := binary.LittleEndian.Uint16(data[34:]); bits != 16 {
		return nil, nil, fmt.Errorf("unsupported bit depth %d", bits)
	}

	channels := int(binary.LittleEndian.Uint16(data[22:]))
	sampleRate := int(binary.LittleEndian.Uint32(data[24:]))
	dataSize := int(binary.LittleEndian.Uint32(data[40:]))
	if channels < 1 || sampleRate < 1 {
		return nil, nil, fmt.Errorf("invalid wav header")
	}
	if dataSize > len(data)-wavHeaderSize {
		// Declared length beyond the actual payload: an unfinalized or
		// truncated recording.
		return nil, nil, fmt.Errorf("wav data truncated: header declares %d bytes, file holds %d: %w",
			dataSize, len(data)-wavHeaderSize, io.ErrUnexpectedEOF)
	}

	count := dataSize / 2
	samples := make([]int16, count)
	for i := 0; i < count; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[wavHeaderSize+i*2:]))
	}

	frames := count / channels
	return samples, &WAVInfo{
		SampleRate: sampleRate,
		Channels:   channels,
		Frames:     frames,
		Duration:   float64(frames) / float64(sampleRate),
	}, nil
}
