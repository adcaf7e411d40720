package button

import (
	"testing"
	"time"
)

// sample is one scripted (level, offset) pair fed to the monitor.
type sample struct {
	pressed bool
	atMs    int64
}

func feedAll(t *testing.T, m *Monitor, samples []sample) []Event {
	t.Helper()
	base := time.Unix(0, 0)
	var events []Event
	for _, s := range samples {
		if ev, ok := m.Feed(s.pressed, base.Add(time.Duration(s.atMs)*time.Millisecond)); ok {
			events = append(events, ev)
		}
	}
	return events
}

func TestShortPress(t *testing.T) {
	m := NewMonitor(DefaultOptions())
	events := feedAll(t, m, []sample{
		{true, 0}, {true, 10}, {true, 20}, {true, 40}, // press accepted at t=0
		{true, 200},
		{false, 300}, {false, 310}, {false, 340}, // release accepted at t=300
	})

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != ShortPress {
		t.Errorf("kind = %v, want ShortPress", ev.Kind)
	}
	if ev.Duration != 300*time.Millisecond {
		t.Errorf("duration = %v, want 300ms", ev.Duration)
	}
	if ev.Duration >= time.Second {
		t.Errorf("ShortPress with duration %v >= 1s", ev.Duration)
	}
}

func TestLongPress(t *testing.T) {
	m := NewMonitor(DefaultOptions())
	events := feedAll(t, m, []sample{
		{true, 0}, {true, 40},
		{true, 500}, {true, 1000},
		{false, 1500}, {false, 1540},
	})

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != LongPress {
		t.Errorf("kind = %v, want LongPress", ev.Kind)
	}
	if ev.Duration != 1500*time.Millisecond {
		t.Errorf("duration = %v, want 1.5s", ev.Duration)
	}
	if ev.Duration < time.Second {
		t.Errorf("LongPress with duration %v < 1s", ev.Duration)
	}
}

func TestExactThresholdIsLong(t *testing.T) {
	m := NewMonitor(DefaultOptions())
	events := feedAll(t, m, []sample{
		{true, 0}, {true, 40},
		{false, 1000}, {false, 1040},
	})

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Kind != LongPress {
		t.Errorf("kind = %v, want LongPress at exactly 1s", events[0].Kind)
	}
}

func TestGlitchSuppressed(t *testing.T) {
	m := NewMonitor(DefaultOptions())
	// Spikes shorter than the 30ms window never become presses.
	events := feedAll(t, m, []sample{
		{true, 0}, {false, 10}, // 10ms spike
		{true, 100}, {false, 120}, // 20ms spike
		{false, 200},
	})

	if len(events) != 0 {
		t.Fatalf("got %d events from glitches, want 0", len(events))
	}
}

func TestBounceOnReleaseDoesNotSplitPress(t *testing.T) {
	m := NewMonitor(DefaultOptions())
	events := feedAll(t, m, []sample{
		{true, 0}, {true, 40}, // press accepted
		{false, 200}, {true, 210}, // release bounce, rejected
		{false, 250}, {false, 260}, {false, 290}, // real release at t=250
	})

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Duration != 250*time.Millisecond {
		t.Errorf("duration = %v, want 250ms (from accepted edges)", events[0].Duration)
	}
}

func TestHeldPressEmitsNothing(t *testing.T) {
	m := NewMonitor(DefaultOptions())
	events := feedAll(t, m, []sample{
		{true, 0}, {true, 40}, {true, 100}, {true, 5000},
	})

	if len(events) != 0 {
		t.Fatalf("got %d events while held, want 0 until release", len(events))
	}
}

func TestConsecutivePresses(t *testing.T) {
	m := NewMonitor(DefaultOptions())
	events := feedAll(t, m, []sample{
		{true, 0}, {true, 40},
		{false, 100}, {false, 140},
		{true, 500}, {true, 540},
		{false, 2000}, {false, 2040},
	})

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != ShortPress {
		t.Errorf("first press kind = %v, want ShortPress", events[0].Kind)
	}
	if events[1].Kind != LongPress {
		t.Errorf("second press kind = %v, want LongPress", events[1].Kind)
	}
}

func TestKindString(t *testing.T) {
	if ShortPress.String() != "short" || LongPress.String() != "long" {
		t.Errorf("Kind.String() = %q/%q, want short/long", ShortPress.String(), LongPress.String())
	}
}
