package gatt

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/keymasterhq/keymaster/internal/status"
)

// State is the session lifecycle state. Unlike status.Phase it includes
// Idle, the pre-radio state before advertising starts.
type State int

const (
	StateIdle State = iota
	StateAdvertising
	StateConnected
	StateDisconnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdvertising:
		return "advertising"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// logTextMax bounds event log entries to a display-safe length.
const logTextMax = 24

// Options configures the session state machine.
type Options struct {
	MaxPayload  int           // largest accepted RX payload in bytes
	BackoffBase time.Duration // first retry delay after a radio error
	BackoffMax  time.Duration // retry delay cap

	// OnMessage is invoked for each accepted RX payload, after the store
	// has been updated. Optional.
	OnMessage func(payload []byte)
}

// DefaultOptions returns sensible defaults. Radio errors retry into
// advertising with a bounded exponential backoff: 500ms, 1s, 2s, 4s, 8s cap.
func DefaultOptions() Options {
	return Options{
		MaxPayload:  status.DefaultMaxMessage,
		BackoffBase: 500 * time.Millisecond,
		BackoffMax:  8 * time.Second,
	}
}

// Session owns the BLE connection lifecycle and the echo protocol. It is the
// sole writer of the connection phase in the status store. All methods must
// be called from the coordination loop; the session itself never spawns
// goroutines or blocks.
type Session struct {
	radio Radio
	store *status.Store
	opts  Options

	state      State
	subscribed bool

	errAttempts int
	retryAt     time.Time

	now func() time.Time
}

// NewSession creates a session in the Idle state.
func NewSession(radio Radio, store *status.Store, opts Options) *Session {
	if opts.MaxPayload <= 0 {
		opts.MaxPayload = status.DefaultMaxMessage
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 8 * time.Second
	}
	return &Session{
		radio: radio,
		store: store,
		opts:  opts,
		state: StateIdle,
		now:   time.Now,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// SetOnMessage replaces the accepted-payload hook. Call before Start.
func (s *Session) SetOnMessage(fn func(payload []byte)) { s.opts.OnMessage = fn }

// Subscribed reports whether the central has enabled TX notifications.
func (s *Session) Subscribed() bool { return s.subscribed }

// Start enables the radio and begins advertising. A radio failure here moves
// the session to Error with a scheduled retry rather than returning a fatal
// error: the device keeps running and keeps trying to become connectable.
func (s *Session) Start() error {
	if err := s.radio.Enable(); err != nil {
		return fmt.Errorf("gatt: enable radio: %w", err)
	}
	s.advertise()
	return nil
}

// HandleEvent advances the state machine for one link-layer event.
func (s *Session) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventConnected:
		s.state = StateConnected
		s.errAttempts = 0
		s.store.SetPhase(status.PhaseConnected)
		msg := "Connected"
		if ev.Peer != "" {
			msg += ": " + truncate(ev.Peer, logTextMax-len(msg)-2)
		}
		s.store.AppendLog(msg)
		slog.Info("[GATT] connected", "peer", ev.Peer)

	case EventDisconnected:
		s.subscribed = false
		s.state = StateDisconnected
		s.store.SetPhase(status.PhaseDisconnected)
		s.store.AppendLog("Disconnected")
		slog.Info("[GATT] disconnected")
		// Re-advertise immediately so the device stays connectable.
		s.advertise()

	case EventSubscribed:
		s.subscribed = true
		slog.Debug("[GATT] central subscribed to TX")

	case EventUnsubscribed:
		s.subscribed = false
		slog.Debug("[GATT] central unsubscribed from TX")

	case EventRxWrite:
		s.handleWrite(ev.Payload)

	case EventRadioError:
		s.enterError(ev.Err)
	}
}

// Tick drives time-based behavior: when in Error, retries advertising once
// the backoff deadline has passed.
func (s *Session) Tick(nowT time.Time) {
	if s.state != StateError {
		return
	}
	if nowT.Before(s.retryAt) {
		return
	}
	slog.Info("[GATT] retrying after radio error", "attempt", s.errAttempts)
	s.advertise()
}

// Send emits a TX notification when a central is connected and subscribed.
// Used by the serial bridge; the echo path does not go through here.
func (s *Session) Send(data []byte) error {
	if s.state != StateConnected {
		return fmt.Errorf("gatt: not connected")
	}
	if !s.subscribed {
		return fmt.Errorf("gatt: central not subscribed")
	}
	if err := s.radio.Notify(data); err != nil {
		return fmt.Errorf("gatt: notify: %w", err)
	}
	return nil
}

// Connected reports whether a central is currently connected.
func (s *Session) Connected() bool { return s.state == StateConnected }

// handleWrite implements the echo protocol: store the payload, log it, and
// echo it back at most once. Oversize payloads are rejected outright.
func (s *Session) handleWrite(payload []byte) {
	if len(payload) > s.opts.MaxPayload {
		s.store.AppendLog("RX rejected: too long")
		slog.Warn("[GATT] rejected oversize write", "len", len(payload), "max", s.opts.MaxPayload)
		return
	}

	s.store.SetMessage(payload)
	s.store.AppendLog("RX: " + truncate(displayText(payload), logTextMax))
	slog.Info("[GATT] rx write", "len", len(payload))

	if s.opts.OnMessage != nil {
		s.opts.OnMessage(payload)
	}

	if !s.subscribed {
		slog.Debug("[GATT] not subscribed, skipping echo")
		return
	}
	// At-most-once echo: a failed notification is logged, never retried.
	// The next write re-triggers the behavior.
	if err := s.radio.Notify(payload); err != nil {
		s.store.AppendLog("TX failed")
		slog.Warn("[GATT] echo notify failed", "error", err)
	}
}

// advertise starts advertising and moves to Advertising; a radio failure
// moves the session to Error instead.
func (s *Session) advertise() {
	if err := s.radio.Advertise(LocalName, ServiceUUID); err != nil {
		s.enterError(err)
		return
	}
	s.state = StateAdvertising
	s.errAttempts = 0
	s.store.SetPhase(status.PhaseAdvertising)
	slog.Info("[GATT] advertising", "name", LocalName)
}

// enterError records a radio failure and schedules a bounded-backoff retry
// into advertising. The device never halts on radio errors.
func (s *Session) enterError(err error) {
	s.subscribed = false
	s.state = StateError
	s.store.SetPhase(status.PhaseError)
	s.store.AppendLog("ERR: " + truncate(errText(err), logTextMax-5))
	delay := backoffDelay(s.errAttempts, s.opts.BackoffBase, s.opts.BackoffMax)
	s.errAttempts++
	s.retryAt = s.now().Add(delay)
	slog.Error("[GATT] radio error", "error", err, "retry_in", delay)
}

// backoffDelay returns the retry delay for attempt n: base doubled per
// attempt, capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base << uint(attempt)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}

// displayText renders a payload for the event log. Valid UTF-8 is shown as
// text, anything else as hex.
func displayText(payload []byte) string {
	if utf8.Valid(payload) {
		return string(payload)
	}
	return fmt.Sprintf("%x", payload)
}

func errText(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}

// truncate bounds s to max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if max < 0 {
		max = 0
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
