package recording

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/opencapture/soundtrap/internal/audio"
)

// SessionConfig holds the parameters shared by all sessions.
type SessionConfig struct {
	DataDir        string
	SampleRate     int
	Channels       int
	MinKeepSeconds float64 // sessions shorter than this are discarded at finalize
}

// SessionWriter owns at most one open recording session at a time. Payload
// data is streamed to a .tmp file; Finalize patches the WAV header, renames
// the payload to .wav and only then writes the metadata sidecar, so a sidecar
// never refers to an unfinalized payload.
type SessionWriter struct {
	cfg SessionConfig

	mu        sync.Mutex
	wav       *WAVWriter
	basename  string
	tmpPath   string
	startTime time.Time
	threshold float64
}

// NewSessionWriter returns a writer for the given data directory.
func NewSessionWriter(cfg SessionConfig) *SessionWriter {
	return &SessionWriter{cfg: cfg}
}

// Active reports whether a session is open.
func (sw *SessionWriter) Active() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.wav != nil
}

// Current returns the open session's basename and start time.
func (sw *SessionWriter) Current() (basename string, start time.Time, ok bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.wav == nil {
		return "", time.Time{}, false
	}
	return sw.basename, sw.startTime, true
}

// Start opens a new session named by the start timestamp and writes any
// buffered pre-roll blocks. The threshold in effect is captured for the
// metadata record.
func (sw *SessionWriter) Start(now time.Time, threshold float64, preroll []*audio.Block) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.wav != nil {
		return ErrSessionOpen
	}

	basename := sw.uniqueBasename(now)
	tmpPath := filepath.Join(sw.cfg.DataDir, basename+TempSuffix)

	wav, err := NewWAVWriter(tmpPath, sw.cfg.SampleRate, sw.cfg.Channels)
	if err != nil {
		return err
	}

	sw.wav = wav
	sw.basename = basename
	sw.tmpPath = tmpPath
	sw.startTime = now
	sw.threshold = threshold

	for _, block := range preroll {
		if _, err := wav.Write(block.Data); err != nil {
			sw.abortLocked()
			return fmt.Errorf("write pre-roll: %w", err)
		}
	}

	slog.Info("recording started", "basename", basename, "preroll_blocks", len(preroll))
	return nil
}

// uniqueBasename names the session by its start timestamp, suffixing a
// counter when back-to-back sessions start within the same second.
func (sw *SessionWriter) uniqueBasename(now time.Time) string {
	base := now.Format("2006-01-02_15_04_05")
	basename := base
	for n := 2; ; n++ {
		_, tmpErr := os.Stat(filepath.Join(sw.cfg.DataDir, basename+TempSuffix))
		_, wavErr := os.Stat(filepath.Join(sw.cfg.DataDir, basename+PayloadSuffix))
		if os.IsNotExist(tmpErr) && os.IsNotExist(wavErr) {
			return basename
		}
		if (tmpErr != nil && !os.IsNotExist(tmpErr)) || (wavErr != nil && !os.IsNotExist(wavErr)) {
			// Stat itself is failing; let session creation report the real
			// error instead of probing for a free name forever.
			return basename
		}
		basename = fmt.Sprintf("%s_%d", base, n)
	}
}

// Append streams one block into the open session.
func (sw *SessionWriter) Append(block *audio.Block) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.wav == nil {
		return ErrNoSession
	}
	if _, err := sw.wav.Write(block.Data); err != nil {
		return fmt.Errorf("append audio block: %w", err)
	}
	return nil
}

// Finalize completes the open session. The payload header is patched and the
// file renamed to .wav before the sidecar is written; on any failure the
// partial payload is retained as .tmp and no sidecar appears. Sessions
// shorter than MinKeepSeconds are removed and (nil, nil) is returned.
func (sw *SessionWriter) Finalize(reason string) (*Metadata, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.wav == nil {
		return nil, ErrNoSession
	}

	wav := sw.wav
	basename := sw.basename
	tmpPath := sw.tmpPath
	start := sw.startTime
	threshold := sw.threshold
	sw.clearLocked()

	length := float64(wav.Frames()) / float64(sw.cfg.SampleRate)

	if err := wav.Finalize(); err != nil {
		// The .tmp payload stays behind for diagnosis; it is not a valid
		// recording without the header fix-up.
		return nil, fmt.Errorf("finalize %s: %w", basename, err)
	}

	if length < sw.cfg.MinKeepSeconds {
		if err := os.Remove(tmpPath); err != nil {
			slog.Warn("failed to remove short recording", "basename", basename, "error", err)
		}
		slog.Info("recording discarded", "basename", basename, "length_s", length, "reason", reason)
		return nil, nil
	}

	wavName := basename + PayloadSuffix
	jsonName := basename + MetadataSuffix

	if err := os.Rename(tmpPath, filepath.Join(sw.cfg.DataDir, wavName)); err != nil {
		return nil, fmt.Errorf("publish %s: %w", basename, err)
	}

	meta := &Metadata{
		SoundFile:  wavName,
		Basename:   basename,
		JSONFile:   jsonName,
		Timestamp:  start,
		Length:     length,
		SampleRate: sw.cfg.SampleRate,
		Channels:   sw.cfg.Channels,
		Threshold:  threshold,
	}
	if err := writeMetadata(filepath.Join(sw.cfg.DataDir, jsonName), meta); err != nil {
		// Payload is finalized but unannounced; consumers ignore it until
		// a sidecar exists.
		return nil, fmt.Errorf("metadata for %s: %w", basename, err)
	}

	slog.Info("recording completed", "basename", basename, "length_s", length, "reason", reason)
	return meta, nil
}

// Abort abandons the open session after a storage failure, leaving the .tmp
// payload for diagnosis.
func (sw *SessionWriter) Abort() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.wav == nil {
		return
	}
	basename := sw.basename
	sw.abortLocked()
	slog.Warn("recording aborted", "basename", basename)
}

func (sw *SessionWriter) abortLocked() {
	if err := sw.wav.Abort(); err != nil {
		slog.Warn("failed to close aborted recording", "basename", sw.basename, "error", err)
	}
	sw.clearLocked()
}

func (sw *SessionWriter) clearLocked() {
	sw.wav = nil
	sw.basename = ""
	sw.tmpPath = ""
	sw.startTime = time.Time{}
	sw.threshold = 0
}
