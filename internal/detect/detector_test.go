package detect

import "testing"

// feed runs the detector over a volume sequence and returns the events.
func feed(d *Detector, volumes []float64) []Event {
	events := make([]Event, len(volumes))
	for i, v := range volumes {
		events[i] = d.Step(v)
	}
	return events
}

func TestDetectorStartStopScenario(t *testing.T) {
	d := New(Config{Threshold: 5, TriggerHold: 3, SilenceHold: 5, MinDuration: 0})

	volumes := []float64{0, 0, 0, 9, 9, 9, 9, 0, 0, 0, 0, 0, 0}
	events := feed(d, volumes)

	if events[5] != EventStart {
		t.Errorf("event at index 5 = %v, want start", events[5])
	}
	if events[11] != EventStop {
		t.Errorf("event at index 11 = %v, want stop", events[11])
	}

	for i, e := range events {
		switch i {
		case 5, 11:
		case 6, 7, 8, 9, 10:
			if e != EventContinue {
				t.Errorf("event at index %d = %v, want continue", i, e)
			}
		default:
			if e != EventNone {
				t.Errorf("event at index %d = %v, want none", i, e)
			}
		}
	}

	if d.State() != StateIdle {
		t.Errorf("final state = %v, want idle", d.State())
	}
}

func TestDetectorDebounceShortBurst(t *testing.T) {
	d := New(Config{Threshold: 5, TriggerHold: 3, SilenceHold: 2})

	// Two-block bursts never reach the three-block trigger hold.
	for _, v := range []float64{9, 9, 0, 9, 9, 0, 9, 9, 0} {
		if e := d.Step(v); e != EventNone {
			t.Fatalf("short burst produced %v, want none", e)
		}
	}
	if d.State() != StateIdle {
		t.Errorf("state = %v, want idle", d.State())
	}
}

func TestDetectorHysteresisSilenceReset(t *testing.T) {
	d := New(Config{Threshold: 5, TriggerHold: 2, SilenceHold: 4})

	feed(d, []float64{9, 9}) // start
	if d.State() != StateRecording {
		t.Fatal("expected recording state")
	}

	// Three silent blocks, then activity: the silence run resets without
	// closing the session.
	events := feed(d, []float64{0, 0, 0, 9, 0, 0, 0})
	for i, e := range events {
		if e != EventContinue {
			t.Errorf("event %d = %v, want continue", i, e)
		}
	}
	if d.State() != StateRecording {
		t.Errorf("state = %v, want recording", d.State())
	}

	// The fourth consecutive silent block closes it.
	if e := d.Step(0); e != EventStop {
		t.Errorf("event = %v, want stop", e)
	}
}

func TestDetectorAllSilentStaysIdle(t *testing.T) {
	d := New(Config{Threshold: 5, TriggerHold: 2, SilenceHold: 2})

	for i := 0; i < 100; i++ {
		if e := d.Step(0); e != EventNone {
			t.Fatalf("silent input produced %v at block %d", e, i)
		}
	}
	if d.State() != StateIdle {
		t.Errorf("state = %v, want idle", d.State())
	}
}

func TestDetectorMinDurationDefersStop(t *testing.T) {
	d := New(Config{Threshold: 5, TriggerHold: 1, SilenceHold: 2, MinDuration: 8})

	if e := d.Step(9); e != EventStart {
		t.Fatalf("event = %v, want start", e)
	}

	// Silence hold is satisfied after two blocks, but the session is too
	// short to stop until the minimum duration has elapsed.
	events := feed(d, []float64{0, 0, 0, 0, 0, 0})
	for i, e := range events {
		if e != EventContinue {
			t.Errorf("event %d = %v, want continue", i, e)
		}
	}
	if e := d.Step(0); e != EventStop {
		t.Errorf("event = %v, want stop once min duration is reached", e)
	}
}

func TestDetectorThresholdBoundary(t *testing.T) {
	d := New(Config{Threshold: 5, TriggerHold: 1, SilenceHold: 1})

	// Exactly at threshold counts as active.
	if e := d.Step(5); e != EventStart {
		t.Errorf("volume at threshold produced %v, want start", e)
	}
}

func TestDetectorSessionLengthIncludesTriggerRun(t *testing.T) {
	d := New(Config{Threshold: 5, TriggerHold: 3, SilenceHold: 5})

	feed(d, []float64{9, 9, 9})
	if got := d.SessionLength(); got != 3 {
		t.Errorf("SessionLength after start = %d, want 3", got)
	}

	d.Step(9)
	if got := d.SessionLength(); got != 4 {
		t.Errorf("SessionLength = %d, want 4", got)
	}
}

func TestDetectorSilentRun(t *testing.T) {
	d := New(Config{Threshold: 5, TriggerHold: 1, SilenceHold: 10})

	d.Step(9)
	feed(d, []float64{0, 0, 0})
	if got := d.SilentRun(); got != 3 {
		t.Errorf("SilentRun = %d, want 3", got)
	}
	d.Step(9)
	if got := d.SilentRun(); got != 0 {
		t.Errorf("SilentRun after activity = %d, want 0", got)
	}
}

func TestDetectorReset(t *testing.T) {
	d := New(Config{Threshold: 5, TriggerHold: 1, SilenceHold: 5})

	d.Step(9)
	if d.State() != StateRecording {
		t.Fatal("expected recording state")
	}
	d.Reset()
	if d.State() != StateIdle {
		t.Errorf("state after reset = %v, want idle", d.State())
	}
	if d.SessionLength() != 0 {
		t.Errorf("SessionLength after reset = %d, want 0", d.SessionLength())
	}
}

func TestDetectorSetThreshold(t *testing.T) {
	d := New(Config{Threshold: 5, TriggerHold: 1, SilenceHold: 1})

	if e := d.Step(3); e != EventNone {
		t.Fatalf("event = %v, want none below threshold", e)
	}
	d.SetThreshold(2)
	if e := d.Step(3); e != EventStart {
		t.Errorf("event = %v, want start after lowering threshold", e)
	}
}
