// Package eventlog provides unified event logging for the recorder. It
// captures recording, calibration, gate and upload events in a single JSON
// lines file that external tooling can tail.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// EventType represents the type of event.
type EventType string

// Recording event types.
const (
	RecordingStarted   EventType = "recording_started"
	RecordingCompleted EventType = "recording_completed"
	RecordingDiscarded EventType = "recording_discarded"
	RecordingAborted   EventType = "recording_aborted"
)

// Calibration event types.
const (
	CalibrationCompleted EventType = "calibration_completed"
	CalibrationFailed    EventType = "calibration_failed"
)

// Upload event types.
const (
	UploadCompleted EventType = "upload_completed"
	UploadFailed    EventType = "upload_failed"
)

// Gate and monitor event types.
const (
	GateEnabled    EventType = "gate_enabled"
	GateDisabled   EventType = "gate_disabled"
	MonitorStarted EventType = "monitor_started"
	MonitorStopped EventType = "monitor_stopped"
)

// Event represents a single log entry with type-specific details.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      EventType `json:"type"`
	Message   string    `json:"msg,omitempty"`
	Details   any       `json:"details,omitempty"`
}

// RecordingDetails contains recording-specific event details.
type RecordingDetails struct {
	Basename      string  `json:"basename,omitempty"`
	LengthSeconds float64 `json:"length_seconds,omitempty"`
	Threshold     float64 `json:"threshold,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// CalibrationDetails contains calibration-specific event details.
type CalibrationDetails struct {
	Baseline  float64 `json:"baseline,omitempty"`
	Trigger   float64 `json:"trigger,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// UploadDetails contains upload-specific event details.
type UploadDetails struct {
	Key   string `json:"key,omitempty"`
	Error string `json:"error,omitempty"`
}

// Logger appends events to a JSON lines file. It is safe for concurrent use.
// A nil Logger discards all events.
type Logger struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// New opens (or creates) the event log file for appending.
func New(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &Logger{f: f, w: bufio.NewWriter(f)}, nil
}

// Log appends one event, flushing immediately so tailers see it.
func (l *Logger) Log(eventType EventType, message string, details any) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	event := Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Message:   message,
		Details:   details,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := l.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return l.w.Flush()
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		_ = l.f.Close()
		return err
	}
	return l.f.Close()
}
