package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoggerAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	l, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := l.Log(RecordingStarted, "", &RecordingDetails{Basename: "rec1"}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := l.Log(RecordingCompleted, "silence", &RecordingDetails{Basename: "rec1", LengthSeconds: 3.5}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		events = append(events, e)
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != RecordingStarted {
		t.Errorf("first event type = %q", events[0].Type)
	}
	if events[1].Type != RecordingCompleted || events[1].Message != "silence" {
		t.Errorf("second event = %+v", events[1])
	}
	if events[0].Timestamp.IsZero() {
		t.Error("event timestamp not set")
	}
}

func TestLoggerAppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	for i := 0; i < 2; i++ {
		l, err := New(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := l.Log(GateEnabled, "", nil); err != nil {
			t.Fatal(err)
		}
		if err := l.Close(); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("got %d lines, want 2", lines)
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	var l *Logger
	if err := l.Log(MonitorStarted, "", nil); err != nil {
		t.Errorf("nil logger Log returned %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil logger Close returned %v", err)
	}
}
