package core

import (
	"strings"
	"testing"
	"time"

	"github.com/keymasterhq/keymaster/internal/button"
	"github.com/keymasterhq/keymaster/internal/display"
	"github.com/keymasterhq/keymaster/internal/gatt"
	"github.com/keymasterhq/keymaster/internal/indicator"
	"github.com/keymasterhq/keymaster/internal/status"
)

type fakeRadio struct {
	events     chan gatt.Event
	notifies   [][]byte
	advertises int
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{events: make(chan gatt.Event, 16)}
}

func (r *fakeRadio) Enable() error { return nil }

func (r *fakeRadio) Advertise(name, serviceUUID string) error {
	r.advertises++
	return nil
}

func (r *fakeRadio) StopAdvertising() error { return nil }

func (r *fakeRadio) Notify(data []byte) error {
	r.notifies = append(r.notifies, append([]byte(nil), data...))
	return nil
}

func (r *fakeRadio) Events() <-chan gatt.Event { return r.events }

type recordingLED struct {
	colors []indicator.Color
}

func (l *recordingLED) SetColor(c indicator.Color) {
	l.colors = append(l.colors, c)
}

type fakeScreen struct {
	draws []string
}

func (s *fakeScreen) Init() error { return nil }

func (s *fakeScreen) DrawZone(z display.Zone, text string) error {
	s.draws = append(s.draws, z.String()+": "+text)
	return nil
}

type recordingNotify struct {
	payloads []string
	serviced int
}

func (n *recordingNotify) HandleNotify(p []byte) {
	n.payloads = append(n.payloads, string(p))
}

func (n *recordingNotify) Service() { n.serviced++ }

type fixture struct {
	core    *Core
	store   *status.Store
	radio   *fakeRadio
	led     *recordingLED
	screen  *fakeScreen
	buttons chan button.Event
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   status.NewStore(status.DefaultLogCapacity, status.DefaultMaxMessage),
		radio:   newFakeRadio(),
		led:     &recordingLED{},
		screen:  &fakeScreen{},
		buttons: make(chan button.Event, 4),
		now:     time.Unix(1000, 0),
	}
	sess := gatt.NewSession(f.radio, f.store, gatt.DefaultOptions())
	ind := indicator.New(f.led, indicator.DefaultOptions())
	pres := display.NewPresenter(f.screen)
	f.core = New(f.store, sess, f.radio.Events(), f.buttons, ind, pres, nil, DefaultOptions())
	f.core.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) tick() { f.core.pass(f.now) }

func (f *fixture) lastColor(t *testing.T) indicator.Color {
	t.Helper()
	if len(f.led.colors) == 0 {
		t.Fatal("no colors recorded")
	}
	return f.led.colors[len(f.led.colors)-1]
}

func (f *fixture) hasLog(prefix string) bool {
	for _, line := range f.store.Snapshot().Log {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func TestBootThenAdvertise(t *testing.T) {
	f := newFixture(t)

	if err := f.core.boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}
	if got := f.lastColor(t); got != indicator.White {
		t.Errorf("boot color = %v, want White", got)
	}
	if f.radio.advertises != 1 {
		t.Errorf("advertises = %d, want 1", f.radio.advertises)
	}

	f.advance(50 * time.Millisecond)
	f.tick()
	if got := f.lastColor(t); got != indicator.Blue {
		t.Errorf("advertising color = %v, want Blue", got)
	}
	if f.store.Snapshot().Phase != status.PhaseAdvertising {
		t.Errorf("phase = %v, want Advertising", f.store.Snapshot().Phase)
	}
}

func TestEchoSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	if err := f.core.boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}
	f.advance(50 * time.Millisecond)
	f.tick()

	f.radio.events <- gatt.Event{Kind: gatt.EventConnected, Peer: "aa:bb"}
	f.radio.events <- gatt.Event{Kind: gatt.EventSubscribed}
	f.advance(50 * time.Millisecond)
	f.tick()
	if got := f.lastColor(t); got != indicator.Green {
		t.Errorf("connected color = %v, want Green", got)
	}

	f.radio.events <- gatt.Event{Kind: gatt.EventRxWrite, Payload: []byte("hello")}
	f.advance(50 * time.Millisecond)
	f.tick()
	if len(f.radio.notifies) != 1 || string(f.radio.notifies[0]) != "hello" {
		t.Fatalf("notifies = %q, want [hello]", f.radio.notifies)
	}
	if got := f.store.Snapshot().LastMessage; string(got) != "hello" {
		t.Errorf("message = %q, want hello", got)
	}
	if !f.hasLog("RX: hello") {
		t.Errorf("log missing RX entry: %v", f.store.Snapshot().Log)
	}
	if got := f.lastColor(t); got != indicator.Cyan {
		t.Errorf("rx pulse color = %v, want Cyan", got)
	}

	f.advance(time.Second)
	f.tick()
	if got := f.lastColor(t); got != indicator.Green {
		t.Errorf("post-pulse color = %v, want Green", got)
	}

	f.radio.events <- gatt.Event{Kind: gatt.EventDisconnected}
	f.advance(50 * time.Millisecond)
	f.tick()
	if got := f.lastColor(t); got != indicator.Red {
		t.Errorf("disconnect pulse color = %v, want Red", got)
	}
	if f.store.Snapshot().Phase != status.PhaseAdvertising {
		t.Errorf("phase after disconnect = %v, want Advertising", f.store.Snapshot().Phase)
	}
	if f.radio.advertises != 2 {
		t.Errorf("advertises = %d, want 2", f.radio.advertises)
	}

	f.advance(time.Second)
	f.tick()
	if got := f.lastColor(t); got != indicator.Blue {
		t.Errorf("re-advertise color = %v, want Blue", got)
	}
}

func TestRxPayloadForwardedToNotifyHandler(t *testing.T) {
	f := newFixture(t)
	rec := &recordingNotify{}
	f.core.SetNotifyHandler(rec)
	if err := f.core.boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}

	f.radio.events <- gatt.Event{Kind: gatt.EventConnected}
	f.radio.events <- gatt.Event{Kind: gatt.EventSubscribed}
	f.radio.events <- gatt.Event{Kind: gatt.EventRxWrite, Payload: []byte("line one")}
	f.tick()

	if len(rec.payloads) != 1 || rec.payloads[0] != "line one" {
		t.Errorf("forwarded payloads = %v, want [line one]", rec.payloads)
	}
}

func TestNotifyHandlerServicedEveryPass(t *testing.T) {
	f := newFixture(t)
	rec := &recordingNotify{}
	f.core.SetNotifyHandler(rec)
	if err := f.core.boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}

	f.tick()
	f.tick()
	f.tick()

	if rec.serviced != 3 {
		t.Errorf("serviced = %d, want once per pass (3)", rec.serviced)
	}
}

func TestShortPressLogsStorageStatus(t *testing.T) {
	f := newFixture(t)
	if err := f.core.boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}

	f.buttons <- button.Event{Kind: button.ShortPress, Duration: 320 * time.Millisecond}
	f.tick()

	if !f.hasLog("BTN: short 320ms") {
		t.Errorf("log missing short press entry: %v", f.store.Snapshot().Log)
	}
	if !f.hasLog("SD: not available") {
		t.Errorf("log missing storage status: %v", f.store.Snapshot().Log)
	}
}

func TestLongPressLogged(t *testing.T) {
	f := newFixture(t)
	if err := f.core.boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}

	f.buttons <- button.Event{Kind: button.LongPress, Duration: 1500 * time.Millisecond}
	f.tick()

	if !f.hasLog("BTN: long 1500ms") {
		t.Errorf("log missing long press entry: %v", f.store.Snapshot().Log)
	}
}

func TestDisplayFollowsLifecycle(t *testing.T) {
	f := newFixture(t)
	if err := f.core.boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}

	f.radio.events <- gatt.Event{Kind: gatt.EventConnected}
	f.tick()

	var sawConnected bool
	for _, d := range f.screen.draws {
		if d == "connection: Status: Connected" {
			sawConnected = true
		}
	}
	if !sawConnected {
		t.Errorf("screen never drew connected status: %v", f.screen.draws)
	}
}

func TestPassDrainsBacklog(t *testing.T) {
	f := newFixture(t)
	if err := f.core.boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}

	f.radio.events <- gatt.Event{Kind: gatt.EventConnected}
	f.radio.events <- gatt.Event{Kind: gatt.EventSubscribed}
	for i := 0; i < 3; i++ {
		f.radio.events <- gatt.Event{Kind: gatt.EventRxWrite, Payload: []byte("x")}
	}
	f.tick()

	if len(f.radio.notifies) != 3 {
		t.Errorf("notifies = %d, want 3 (all backlog echoed in one pass)", len(f.radio.notifies))
	}
}
