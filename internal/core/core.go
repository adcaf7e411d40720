// Package core is the coordination layer: it owns the status store, wires
// the GATT session, button monitor, indicator, display, and storage
// together, and services them from a single goroutine so shared state is
// only ever touched between well-defined points. Each pass of the loop
// drains pending radio events, drains pending button events, then refreshes
// the indicator and the display.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keymasterhq/keymaster/internal/button"
	"github.com/keymasterhq/keymaster/internal/display"
	"github.com/keymasterhq/keymaster/internal/gatt"
	"github.com/keymasterhq/keymaster/internal/indicator"
	"github.com/keymasterhq/keymaster/internal/status"
	"github.com/keymasterhq/keymaster/internal/storage"
)

// NotifyHandler receives each accepted RX payload after the session has
// processed it, and is serviced once per pass to flush any outbound work it
// queued from other goroutines. The serial bridge hangs off this; all
// session access stays on the loop goroutine.
type NotifyHandler interface {
	HandleNotify(payload []byte)
	Service()
}

// Options configures the coordination loop.
type Options struct {
	Tick time.Duration // pass cadence
}

// DefaultOptions uses a 50ms tick.
func DefaultOptions() Options {
	return Options{Tick: 50 * time.Millisecond}
}

// Core runs the device. Construct with New, then Run until shutdown.
type Core struct {
	store     *status.Store
	session   *gatt.Session
	radioEvs  <-chan gatt.Event
	buttonEvs <-chan button.Event
	ind       *indicator.Adapter
	presenter *display.Presenter
	storage   *storage.Manager
	notify    NotifyHandler // optional

	opts Options
	now  func() time.Time
}

// New wires the core. The session's OnMessage hook must already route
// through SetSession; buttonEvs may be nil when no button is configured.
func New(
	store *status.Store,
	session *gatt.Session,
	radioEvs <-chan gatt.Event,
	buttonEvs <-chan button.Event,
	ind *indicator.Adapter,
	presenter *display.Presenter,
	mgr *storage.Manager,
	opts Options,
) *Core {
	if opts.Tick <= 0 {
		opts.Tick = 50 * time.Millisecond
	}
	c := &Core{
		store:     store,
		session:   session,
		radioEvs:  radioEvs,
		buttonEvs: buttonEvs,
		ind:       ind,
		presenter: presenter,
		storage:   mgr,
		opts:      opts,
		now:       time.Now,
	}
	session.SetOnMessage(c.onMessage)
	return c
}

// onMessage fires synchronously from HandleEvent, inside the loop's pass,
// for every write the session accepted.
func (c *Core) onMessage(payload []byte) {
	c.ind.PulseRx(c.now())
	if c.notify != nil {
		c.notify.HandleNotify(payload)
	}
}

// SetNotifyHandler attaches an optional consumer of accepted RX payloads.
func (c *Core) SetNotifyHandler(h NotifyHandler) { c.notify = h }

// Run executes the coordination loop until ctx is cancelled. The boot
// sequence renders the booting state once before the radio comes up, so the
// indicator shows white before the advertising blue.
func (c *Core) Run(ctx context.Context) error {
	if err := c.boot(); err != nil {
		return err
	}

	ticker := time.NewTicker(c.opts.Tick)
	defer ticker.Stop()

	slog.Info("[Core] coordination loop started", "tick", c.opts.Tick)

	for {
		select {
		case <-ctx.Done():
			slog.Info("[Core] shutting down")
			return nil
		case <-ticker.C:
			c.pass(c.now())
		}
	}
}

// boot renders the booting state once before the radio comes up, then
// starts the session.
func (c *Core) boot() error {
	snap := c.store.Snapshot()
	c.ind.Refresh(snap, c.now())
	c.presenter.Refresh(snap)

	if err := c.session.Start(); err != nil {
		return fmt.Errorf("core: start session: %w", err)
	}
	return nil
}

// pass services every event source once. Drains are bounded by channel
// capacity, so a pass always terminates and every source is serviced at
// least once per pass.
func (c *Core) pass(now time.Time) {
	c.drainRadio(now)
	c.session.Tick(now)
	c.drainButtons()
	if c.notify != nil {
		c.notify.Service()
	}

	snap := c.store.Snapshot()
	c.ind.Refresh(snap, now)
	c.presenter.Refresh(snap)
}

func (c *Core) drainRadio(now time.Time) {
	for {
		select {
		case ev := <-c.radioEvs:
			if ev.Kind == gatt.EventDisconnected {
				c.ind.PulseDisconnect(now)
			}
			c.session.HandleEvent(ev)
		default:
			return
		}
	}
}

func (c *Core) drainButtons() {
	if c.buttonEvs == nil {
		return
	}
	for {
		select {
		case ev := <-c.buttonEvs:
			c.handlePress(ev)
		default:
			return
		}
	}
}

// handlePress reacts to classified presses. A short press logs a one-shot
// status line (storage presence plus connection phase); a long press is
// reserved but still classified and logged, never dropped.
func (c *Core) handlePress(ev button.Event) {
	ms := ev.Duration.Milliseconds()
	slog.Info("[Core] button press", "kind", ev.Kind.String(), "ms", ms)

	switch ev.Kind {
	case button.ShortPress:
		c.store.AppendLog(fmt.Sprintf("BTN: short %dms", ms))
		if c.storage != nil && c.storage.Mounted() {
			c.store.AppendLog("SD: mounted")
		} else {
			c.store.AppendLog("SD: not available")
		}
	case button.LongPress:
		c.store.AppendLog(fmt.Sprintf("BTN: long %dms", ms))
	}
}
