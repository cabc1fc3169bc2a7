// Package monitor runs the capture loop: it pulls audio blocks from the
// device, computes per-block volume, drives the activity detector and
// dispatches session writer calls for the events it emits.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opencapture/soundtrap/internal/audio"
	"github.com/opencapture/soundtrap/internal/control"
	"github.com/opencapture/soundtrap/internal/detect"
	"github.com/opencapture/soundtrap/internal/eventlog"
	"github.com/opencapture/soundtrap/internal/recording"
)

// Config holds the capture loop parameters. All block counts are derived
// from durations by the caller at the device's block rate.
type Config struct {
	Metric            audio.Metric
	Detector          detect.Config
	PrerollBlocks     int // idle blocks retained and prepended to a new session
	MaxTrailingBlocks int // silent blocks written before appending pauses; 0 = uncapped
	MaxSessionBlocks  int // hard session length cap; 0 = uncapped
}

// Status is a point-in-time snapshot of the capture loop.
type Status struct {
	State         detect.State        `json:"state"`
	GateEnabled   bool                `json:"gate_enabled"`
	Volume        float64             `json:"volume"`
	Threshold     float64             `json:"threshold"`
	Current       string              `json:"current,omitempty"`
	CurrentLength float64             `json:"current_length,omitempty"`
	Blocks        uint64              `json:"blocks"`
	Dropped       uint64              `json:"dropped"`
	LastRecording *recording.Metadata `json:"last_recording,omitempty"`
}

// StatusCallback receives a snapshot whenever the loop changes state.
type StatusCallback func(Status)

// Monitor owns the capture loop. Construct with New, then Run blocks until
// the context is cancelled or the block source fails.
type Monitor struct {
	cfg    Config
	src    audio.BlockSource
	writer *recording.SessionWriter
	gate   *control.Gate
	det    *detect.Detector
	events *eventlog.Logger

	onComplete     func(*recording.Metadata)
	onStorageError func(operation string, err error)
	statusCallback StatusCallback

	preroll []*audio.Block

	mu     sync.RWMutex
	status Status
}

// New creates a Monitor. The events logger may be nil.
func New(cfg Config, src audio.BlockSource, writer *recording.SessionWriter, gate *control.Gate, events *eventlog.Logger) *Monitor {
	return &Monitor{
		cfg:    cfg,
		src:    src,
		writer: writer,
		gate:   gate,
		det:    detect.New(cfg.Detector),
		events: events,
		status: Status{
			State:     detect.StateIdle,
			Threshold: cfg.Detector.Threshold,
		},
	}
}

// SetCompletionHandler registers a hook invoked with the metadata of every
// finalized recording. Called from the capture loop; keep it fast or go
// asynchronous inside.
func (m *Monitor) SetCompletionHandler(fn func(*recording.Metadata)) {
	m.onComplete = fn
}

// SetStorageErrorHandler registers a hook invoked when a session is aborted
// by a storage failure.
func (m *Monitor) SetStorageErrorHandler(fn func(operation string, err error)) {
	m.onStorageError = fn
}

// SetStatusCallback registers a callback invoked on state transitions.
func (m *Monitor) SetStatusCallback(fn StatusCallback) {
	m.statusCallback = fn
}

// Status returns the current snapshot.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// SetThreshold replaces the detection threshold at runtime.
func (m *Monitor) SetThreshold(v float64) {
	m.det.SetThreshold(v)
	m.mu.Lock()
	m.status.Threshold = v
	m.mu.Unlock()
}

// Run drives the capture loop until ctx is cancelled. An open session is
// finalized before returning. Any error other than context cancellation is
// a device failure.
func (m *Monitor) Run(ctx context.Context) error {
	slog.Info("capture loop started",
		"threshold", m.cfg.Detector.Threshold,
		"trigger_hold", m.cfg.Detector.TriggerHold,
		"silence_hold", m.cfg.Detector.SilenceHold)
	_ = m.events.Log(eventlog.MonitorStarted, "", nil)

	defer func() {
		if m.writer.Active() {
			m.finalize("shutdown")
		}
		_ = m.events.Log(eventlog.MonitorStopped, "", nil)
		slog.Info("capture loop stopped")
	}()

	for {
		block, err := m.src.ReadBlock(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		m.step(block)
	}
}

// step processes a single captured block.
func (m *Monitor) step(block *audio.Block) {
	volume := audio.BlockVolume(block, m.cfg.Metric)
	enabled := m.gate.Enabled()

	wasEnabled := m.Status().GateEnabled
	if enabled != wasEnabled {
		if enabled {
			slog.Info("recording gate enabled")
			_ = m.events.Log(eventlog.GateEnabled, "", nil)
		} else {
			slog.Info("recording gate disabled")
			_ = m.events.Log(eventlog.GateDisabled, "", nil)
		}
	}

	if !enabled {
		// Disabling the gate ends any session in flight; blocks captured
		// while disabled are never written, not even as pre-roll.
		if m.writer.Active() {
			m.finalize("gate disabled")
		}
		m.det.Reset()
		m.preroll = m.preroll[:0]
		m.publish(volume, enabled, enabled != wasEnabled)
		return
	}

	event := m.det.Step(volume)

	switch event {
	case detect.EventNone:
		m.bufferPreroll(block)

	case detect.EventStart:
		threshold := m.Status().Threshold
		if err := m.writer.Start(time.Now(), threshold, m.preroll); err != nil {
			m.storageFailure("start session", err)
			break
		}
		m.preroll = m.preroll[:0]
		if err := m.writer.Append(block); err != nil {
			m.storageFailure("append block", err)
			break
		}
		basename, _, _ := m.writer.Current()
		_ = m.events.Log(eventlog.RecordingStarted, "", &eventlog.RecordingDetails{
			Basename:  basename,
			Threshold: threshold,
		})

	case detect.EventContinue:
		if m.cfg.MaxTrailingBlocks > 0 && m.det.SilentRun() > m.cfg.MaxTrailingBlocks {
			// The session stays open but prolonged silence is not written,
			// so a long quiet tail costs bounded disk space.
			break
		}
		if err := m.writer.Append(block); err != nil {
			m.storageFailure("append block", err)
			break
		}
		if m.cfg.MaxSessionBlocks > 0 && m.det.SessionLength() >= m.cfg.MaxSessionBlocks {
			m.finalize("max duration")
			m.det.Reset()
		}

	case detect.EventStop:
		// The closing silent block is not part of the recording.
		m.finalize("silence")
	}

	m.publish(volume, enabled, event == detect.EventStart || event == detect.EventStop || enabled != wasEnabled)
}

// bufferPreroll retains the most recent idle blocks for session start.
func (m *Monitor) bufferPreroll(block *audio.Block) {
	if m.cfg.PrerollBlocks <= 0 {
		return
	}
	m.preroll = append(m.preroll, block)
	if len(m.preroll) > m.cfg.PrerollBlocks {
		m.preroll = m.preroll[1:]
	}
}

// finalize completes the open session and runs the completion hook.
func (m *Monitor) finalize(reason string) {
	meta, err := m.writer.Finalize(reason)
	if err != nil {
		slog.Error("failed to finalize recording", "reason", reason, "error", err)
		_ = m.events.Log(eventlog.RecordingAborted, reason, &eventlog.RecordingDetails{Error: err.Error()})
		if m.onStorageError != nil {
			m.onStorageError("finalize recording", err)
		}
		return
	}
	if meta == nil {
		_ = m.events.Log(eventlog.RecordingDiscarded, reason, nil)
		return
	}

	_ = m.events.Log(eventlog.RecordingCompleted, reason, &eventlog.RecordingDetails{
		Basename:      meta.Basename,
		LengthSeconds: meta.Length,
		Threshold:     meta.Threshold,
	})

	m.mu.Lock()
	m.status.LastRecording = meta
	m.mu.Unlock()

	if m.onComplete != nil {
		m.onComplete(meta)
	}
}

// storageFailure abandons the open session and resets detection so the loop
// can keep monitoring after a disk problem.
func (m *Monitor) storageFailure(operation string, err error) {
	slog.Error("storage failure, aborting session", "operation", operation, "error", err)
	m.writer.Abort()
	m.det.Reset()
	_ = m.events.Log(eventlog.RecordingAborted, operation, &eventlog.RecordingDetails{Error: err.Error()})
	if m.onStorageError != nil {
		m.onStorageError(operation, err)
	}
}

// publish refreshes the status snapshot and fires the callback on changes.
func (m *Monitor) publish(volume float64, enabled, changed bool) {
	m.mu.Lock()
	m.status.State = m.det.State()
	m.status.GateEnabled = enabled
	m.status.Volume = volume
	m.status.Blocks++
	if basename, start, ok := m.writer.Current(); ok {
		m.status.Current = basename
		m.status.CurrentLength = time.Since(start).Seconds()
	} else {
		m.status.Current = ""
		m.status.CurrentLength = 0
	}
	if dev, ok := m.src.(interface{ Dropped() uint64 }); ok {
		m.status.Dropped = dev.Dropped()
	}
	snapshot := m.status
	m.mu.Unlock()

	if changed && m.statusCallback != nil {
		m.statusCallback(snapshot)
	}
}
