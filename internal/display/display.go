// Package display renders device state onto the status panel. The Presenter
// works against the Screen collaborator interface and redraws only the zones
// whose text changed since the last pass; when no screen is available it
// degrades to a no-op that still accepts every call.
package display

import (
	"log/slog"
	"strings"

	"github.com/keymasterhq/keymaster/internal/status"
)

// Zone identifies one fixed region of the panel.
type Zone int

const (
	ZoneConnection Zone = iota
	ZoneLog
	ZoneStorage
)

func (z Zone) String() string {
	switch z {
	case ZoneConnection:
		return "connection"
	case ZoneLog:
		return "log"
	case ZoneStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Screen is the external display collaborator.
type Screen interface {
	// Init prepares the panel. An error means the display is unavailable.
	Init() error
	// DrawZone replaces the content of one zone.
	DrawZone(z Zone, text string) error
}

// NoopScreen accepts all calls and draws nothing.
type NoopScreen struct{}

func (NoopScreen) Init() error { return nil }

func (NoopScreen) DrawZone(Zone, string) error { return nil }

// Presenter diffs status snapshots into zone redraws. Not safe for
// concurrent use; it belongs to the coordination loop.
type Presenter struct {
	screen  Screen
	enabled bool
	last    map[Zone]string
}

// NewPresenter initializes the screen. If the screen is nil or Init fails,
// the presenter becomes a permanent no-op so callers never branch on
// display presence.
func NewPresenter(screen Screen) *Presenter {
	p := &Presenter{
		screen: screen,
		last:   make(map[Zone]string),
	}
	if screen == nil {
		return p
	}
	if err := screen.Init(); err != nil {
		slog.Warn("[Display] unavailable, continuing without it", "error", err)
		return p
	}
	p.enabled = true
	return p
}

// Enabled reports whether a real screen is attached.
func (p *Presenter) Enabled() bool { return p.enabled }

// Refresh redraws the zones whose backing text changed.
func (p *Presenter) Refresh(snap status.Snapshot) {
	if !p.enabled {
		return
	}
	p.draw(ZoneConnection, connectionText(snap))
	p.draw(ZoneLog, logText(snap))
	p.draw(ZoneStorage, storageText(snap))
}

func (p *Presenter) draw(z Zone, text string) {
	if prev, ok := p.last[z]; ok && prev == text {
		return
	}
	if err := p.screen.DrawZone(z, text); err != nil {
		slog.Warn("[Display] draw failed", "zone", z.String(), "error", err)
		return
	}
	p.last[z] = text
}

func connectionText(snap status.Snapshot) string {
	switch snap.Phase {
	case status.PhaseBooting:
		return "Status: Initializing..."
	case status.PhaseAdvertising:
		return "Status: Advertising..."
	case status.PhaseConnected:
		return "Status: Connected"
	case status.PhaseDisconnected:
		return "Status: Disconnected"
	case status.PhaseError:
		return "Status: Error"
	default:
		return "Status: ?"
	}
}

// logText renders the event log newest first.
func logText(snap status.Snapshot) string {
	if len(snap.Log) == 0 {
		return ""
	}
	lines := make([]string, 0, len(snap.Log))
	for i := len(snap.Log) - 1; i >= 0; i-- {
		lines = append(lines, "> "+snap.Log[i])
	}
	return strings.Join(lines, "\n")
}

func storageText(snap status.Snapshot) string {
	switch {
	case !snap.StoragePresent:
		return "SD: not available"
	case snap.StorageBusy:
		return "SD: busy"
	default:
		return "SD: mounted"
	}
}
