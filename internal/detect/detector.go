// Package detect implements the sound-activity state machine that turns a
// noisy per-block volume signal into clean session start/stop decisions.
package detect

// State is the current activity state.
type State string

const (
	// StateIdle indicates no active recording session.
	StateIdle State = "idle"
	// StateRecording indicates an open recording session.
	StateRecording State = "recording"
)

// Event is the decision emitted for one volume sample.
type Event int

const (
	// EventNone means no session is open and nothing changed.
	EventNone Event = iota
	// EventStart opens a new session. The trigger-hold run of blocks that
	// caused it, including the current one, belongs to the session.
	EventStart
	// EventContinue keeps the open session running.
	EventContinue
	// EventStop closes the open session.
	EventStop
)

// String returns the event name for logging.
func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventContinue:
		return "continue"
	case EventStop:
		return "stop"
	default:
		return "none"
	}
}

// Config holds the detector thresholds. All counts are in blocks.
type Config struct {
	Threshold   float64 // volume at or above which a block counts as active
	TriggerHold int     // consecutive active blocks required to start
	SilenceHold int     // consecutive silent blocks required to stop
	MinDuration int     // minimum session length before a stop is accepted
}

// Detector is the two-state activity machine. It is purely reactive, driven
// one volume sample at a time, and performs no I/O. It is not safe for
// concurrent use; the capture loop drives it synchronously.
type Detector struct {
	cfg   Config
	state State

	above  int // consecutive blocks at or above threshold
	below  int // consecutive blocks below threshold
	length int // blocks since the session started, trigger run included
}

// New returns a Detector in the idle state.
func New(cfg Config) *Detector {
	if cfg.TriggerHold < 1 {
		cfg.TriggerHold = 1
	}
	if cfg.SilenceHold < 1 {
		cfg.SilenceHold = 1
	}
	return &Detector{cfg: cfg, state: StateIdle}
}

// Step consumes one volume sample and returns the resulting event.
func (d *Detector) Step(volume float64) Event {
	active := volume >= d.cfg.Threshold

	switch d.state {
	case StateIdle:
		if !active {
			d.above = 0
			return EventNone
		}
		d.above++
		if d.above < d.cfg.TriggerHold {
			return EventNone
		}
		// Debounce satisfied: open the session. The trigger run counts
		// toward the minimum duration.
		d.state = StateRecording
		d.length = d.above
		d.above = 0
		d.below = 0
		return EventStart

	default: // StateRecording
		d.length++
		if active {
			// A single active block resets the silence run without
			// restarting the session.
			d.below = 0
			return EventContinue
		}
		d.below++
		if d.below >= d.cfg.SilenceHold && d.length >= d.cfg.MinDuration {
			d.state = StateIdle
			d.above = 0
			d.below = 0
			d.length = 0
			return EventStop
		}
		return EventContinue
	}
}

// State returns the current activity state.
func (d *Detector) State() State {
	return d.state
}

// SilentRun returns the length of the current consecutive-silent-block run.
// The capture loop uses it to cap how much trailing silence is written.
func (d *Detector) SilentRun() int {
	return d.below
}

// SessionLength returns the number of blocks consumed by the open session,
// or 0 when idle.
func (d *Detector) SessionLength() int {
	if d.state != StateRecording {
		return 0
	}
	return d.length
}

// SetThreshold replaces the detection threshold, effective from the next step.
func (d *Detector) SetThreshold(v float64) {
	d.cfg.Threshold = v
}

// Reset returns the detector to idle and clears all counters.
func (d *Detector) Reset() {
	d.state = StateIdle
	d.above = 0
	d.below = 0
	d.length = 0
}
