// Package indicator maps device state to the RGB status LED. The color is a
// pure function of the latest status snapshot plus at most one transient
// overlay (message flash or disconnect flash); redundant hardware calls are
// skipped.
package indicator

import (
	"log/slog"
	"time"

	"github.com/keymasterhq/keymaster/internal/status"
)

// Color is a named LED color.
type Color int

const (
	Off Color = iota
	White
	Blue
	Green
	Cyan
	Red
	Yellow
)

func (c Color) String() string {
	switch c {
	case Off:
		return "off"
	case White:
		return "white"
	case Blue:
		return "blue"
	case Green:
		return "green"
	case Cyan:
		return "cyan"
	case Red:
		return "red"
	case Yellow:
		return "yellow"
	default:
		return "unknown"
	}
}

// LED is the external indicator collaborator. SetColor is best-effort; no
// failure is signaled.
type LED interface {
	SetColor(c Color)
}

// Noop discards all color changes, for boards without an indicator.
type Noop struct{}

func (Noop) SetColor(Color) {}

// DebugLED logs color changes instead of driving hardware.
type DebugLED struct{}

func (DebugLED) SetColor(c Color) {
	slog.Debug("[LED] color", "color", c.String())
}

// Options configures transient overlay timing.
type Options struct {
	Pulse time.Duration // how long message/disconnect flashes last
}

// DefaultOptions uses a 300ms pulse.
func DefaultOptions() Options {
	return Options{Pulse: 300 * time.Millisecond}
}

// PhaseColor is the pure phase-to-color mapping.
func PhaseColor(p status.Phase) Color {
	switch p {
	case status.PhaseBooting:
		return White
	case status.PhaseAdvertising:
		return Blue
	case status.PhaseConnected:
		return Green
	case status.PhaseDisconnected, status.PhaseError:
		return Red
	default:
		return Off
	}
}

// Adapter drives the LED from status snapshots. Not safe for concurrent
// use; it belongs to the coordination loop.
type Adapter struct {
	led  LED
	opts Options

	last    Color
	hasLast bool

	overlay      Color
	overlayUntil time.Time
}

// New creates an adapter. A nil led degrades to Noop.
func New(led LED, opts Options) *Adapter {
	if led == nil {
		led = Noop{}
	}
	if opts.Pulse <= 0 {
		opts.Pulse = 300 * time.Millisecond
	}
	return &Adapter{led: led, opts: opts}
}

// PulseRx flashes cyan for the pulse window; the color then reverts to the
// phase-derived one.
func (a *Adapter) PulseRx(now time.Time) {
	a.overlay = Cyan
	a.overlayUntil = now.Add(a.opts.Pulse)
}

// PulseDisconnect flashes red for the pulse window before the re-advertising
// blue takes over.
func (a *Adapter) PulseDisconnect(now time.Time) {
	a.overlay = Red
	a.overlayUntil = now.Add(a.opts.Pulse)
}

// Refresh recomputes the LED color from the snapshot and current time,
// issuing a hardware call only when the color changed.
func (a *Adapter) Refresh(snap status.Snapshot, now time.Time) {
	c := PhaseColor(snap.Phase)
	if snap.StorageBusy {
		c = Yellow
	}
	if now.Before(a.overlayUntil) {
		c = a.overlay
	}

	if a.hasLast && c == a.last {
		return
	}
	a.led.SetColor(c)
	a.last = c
	a.hasLast = true
}
