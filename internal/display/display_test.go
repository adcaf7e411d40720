package display

import (
	"errors"
	"strings"
	"testing"

	"github.com/keymasterhq/keymaster/internal/status"
)

// fakeScreen records zone draws.
type fakeScreen struct {
	initErr error
	draws   []string // "zone:text"
}

func (s *fakeScreen) Init() error { return s.initErr }

func (s *fakeScreen) DrawZone(z Zone, text string) error {
	s.draws = append(s.draws, z.String()+":"+text)
	return nil
}

func TestRedrawsOnlyChangedZones(t *testing.T) {
	screen := &fakeScreen{}
	p := NewPresenter(screen)

	snap := status.Snapshot{Phase: status.PhaseAdvertising}
	p.Refresh(snap)
	first := len(screen.draws)
	if first == 0 {
		t.Fatal("first refresh drew nothing")
	}

	// Identical snapshot: nothing redrawn.
	p.Refresh(snap)
	if len(screen.draws) != first {
		t.Errorf("unchanged refresh drew %d zones, want 0", len(screen.draws)-first)
	}

	// Only the connection zone changes.
	snap.Phase = status.PhaseConnected
	p.Refresh(snap)
	added := screen.draws[first:]
	if len(added) != 1 {
		t.Fatalf("changed refresh drew %d zones, want 1: %v", len(added), added)
	}
	if !strings.HasPrefix(added[0], "connection:") {
		t.Errorf("redrew %q, want connection zone", added[0])
	}
}

func TestLogRendersNewestFirst(t *testing.T) {
	screen := &fakeScreen{}
	p := NewPresenter(screen)

	snap := status.Snapshot{
		Phase: status.PhaseConnected,
		Log:   []string{"oldest", "middle", "newest"},
	}
	p.Refresh(snap)

	var logDraw string
	for _, d := range screen.draws {
		if strings.HasPrefix(d, "log:") {
			logDraw = strings.TrimPrefix(d, "log:")
		}
	}
	want := "> newest\n> middle\n> oldest"
	if logDraw != want {
		t.Errorf("log zone = %q, want %q", logDraw, want)
	}
}

func TestStorageZoneText(t *testing.T) {
	cases := []struct {
		snap status.Snapshot
		want string
	}{
		{status.Snapshot{}, "SD: not available"},
		{status.Snapshot{StoragePresent: true}, "SD: mounted"},
		{status.Snapshot{StoragePresent: true, StorageBusy: true}, "SD: busy"},
	}
	for _, tc := range cases {
		if got := storageText(tc.snap); got != tc.want {
			t.Errorf("storageText(%+v) = %q, want %q", tc.snap, got, tc.want)
		}
	}
}

func TestInitFailureDegradesToNoop(t *testing.T) {
	screen := &fakeScreen{initErr: errors.New("no panel")}
	p := NewPresenter(screen)

	if p.Enabled() {
		t.Error("presenter should be disabled after Init failure")
	}

	// Calls are still accepted without drawing or panicking.
	p.Refresh(status.Snapshot{Phase: status.PhaseAdvertising})
	if len(screen.draws) != 0 {
		t.Errorf("disabled presenter drew %d zones, want 0", len(screen.draws))
	}
}

func TestNilScreenDegradesToNoop(t *testing.T) {
	p := NewPresenter(nil)
	if p.Enabled() {
		t.Error("presenter should be disabled with nil screen")
	}
	p.Refresh(status.Snapshot{})
}
