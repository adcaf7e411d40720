// Package button classifies presses on the device push-button. The debounce
// and duration logic is a pure state machine fed with (level, timestamp)
// samples, so tests can drive it with synthetic edges; a small sampling loop
// adapts it to a real GPIO line.
package button

import (
	"time"
)

// Kind classifies a completed press by hold duration.
type Kind int

const (
	ShortPress Kind = iota // released before the long-press threshold
	LongPress              // held at least the long-press threshold
)

func (k Kind) String() string {
	if k == LongPress {
		return "long"
	}
	return "short"
}

// Event is a completed button press. Events fire on release only; a press
// still held has no event yet.
type Event struct {
	Kind     Kind
	Duration time.Duration
	At       time.Time // timestamp of the accepted release edge
}

// Clock abstracts a monotonic time source so press timing can be tested
// without real hardware delays.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock (monotonic under the hood).
var SystemClock Clock = systemClock{}

// Line abstracts the GPIO input. Pressed is level-corrected: it returns true
// while the button is held, regardless of active-low wiring.
type Line interface {
	Pressed() (bool, error)
}

// Options configures debounce and classification timing.
type Options struct {
	Debounce     time.Duration // minimum stable interval to accept an edge
	LongPress    time.Duration // hold duration threshold for LongPress
	SamplePeriod time.Duration // polling cadence of the sampling loop
}

// DefaultOptions matches the hardware: 30ms debounce window, 1s long-press
// threshold, 10ms sampling.
func DefaultOptions() Options {
	return Options{
		Debounce:     30 * time.Millisecond,
		LongPress:    time.Second,
		SamplePeriod: 10 * time.Millisecond,
	}
}

// Monitor is the debounce/classification state machine. Feed it one sample
// per call; it emits at most one Event per accepted release edge. Not safe
// for concurrent use; it belongs to a single sampling loop.
type Monitor struct {
	opts Options

	stable bool // debounced level, true = pressed

	candidate    bool // pending level change awaiting stability
	candidateAt  time.Time
	hasCandidate bool

	pressedAt time.Time // accepted falling edge timestamp
}

// NewMonitor creates a monitor in the released state.
func NewMonitor(opts Options) *Monitor {
	if opts.Debounce <= 0 {
		opts.Debounce = 30 * time.Millisecond
	}
	if opts.LongPress <= 0 {
		opts.LongPress = time.Second
	}
	return &Monitor{opts: opts}
}

// Feed processes one sample. A level change is accepted only once it has
// held for the debounce window; the edge is then timestamped at the moment
// it first appeared, not when it was confirmed. Glitches shorter than the
// window vanish without a trace.
func (m *Monitor) Feed(pressed bool, at time.Time) (Event, bool) {
	if pressed == m.stable {
		// Level returned to the stable state: any pending edge was bounce.
		m.hasCandidate = false
		return Event{}, false
	}

	if !m.hasCandidate || pressed != m.candidate {
		m.candidate = pressed
		m.candidateAt = at
		m.hasCandidate = true
		return Event{}, false
	}

	if at.Sub(m.candidateAt) < m.opts.Debounce {
		return Event{}, false
	}

	// Edge accepted, backdated to when it first appeared.
	edgeAt := m.candidateAt
	m.stable = pressed
	m.hasCandidate = false

	if pressed {
		m.pressedAt = edgeAt
		return Event{}, false
	}

	d := edgeAt.Sub(m.pressedAt)
	kind := ShortPress
	if d >= m.opts.LongPress {
		kind = LongPress
	}
	return Event{Kind: kind, Duration: d, At: edgeAt}, true
}
