// Package status holds the shared device state: connection phase, the last
// payload received over BLE, storage availability, and a small rolling event
// log rendered on the display. It is a passive data holder: components read
// snapshots and write through narrow per-field mutators; the store itself
// never calls anyone back.
package status

import "sync"

// Phase is the BLE connection lifecycle phase as seen by the rest of the
// device (indicator, display).
type Phase int

const (
	PhaseBooting Phase = iota
	PhaseAdvertising
	PhaseConnected
	PhaseDisconnected
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseBooting:
		return "booting"
	case PhaseAdvertising:
		return "advertising"
	case PhaseConnected:
		return "connected"
	case PhaseDisconnected:
		return "disconnected"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	// DefaultLogCapacity is the number of event log lines kept.
	DefaultLogCapacity = 4

	// DefaultMaxMessage is the largest RX payload retained, matching the
	// usable ATT payload at the default negotiated MTU (247 - 3).
	DefaultMaxMessage = 244
)

// Snapshot is a consistent copy of the full device state. Mutating a
// snapshot never affects the store.
type Snapshot struct {
	Phase          Phase
	LastMessage    []byte
	StoragePresent bool
	StorageBusy    bool
	Log            []string // oldest first; renderers display newest first
}

// Store is the process-wide device state record. All methods are safe for
// concurrent use; every mutation is a single terminal step.
type Store struct {
	mu             sync.Mutex
	phase          Phase
	lastMessage    []byte
	storagePresent bool
	storageBusy    bool

	log      []string // ring buffer
	logHead  int      // index of oldest entry
	logCount int

	maxMessage int
}

// NewStore creates a store with all fields at their boot defaults.
// Non-positive arguments fall back to the package defaults.
func NewStore(logCapacity, maxMessage int) *Store {
	if logCapacity <= 0 {
		logCapacity = DefaultLogCapacity
	}
	if maxMessage <= 0 {
		maxMessage = DefaultMaxMessage
	}
	return &Store{
		phase:      PhaseBooting,
		log:        make([]string, logCapacity),
		maxMessage: maxMessage,
	}
}

// Snapshot returns a consistent copy of all fields, never a partial write.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := make([]byte, len(s.lastMessage))
	copy(msg, s.lastMessage)

	log := make([]string, s.logCount)
	for i := 0; i < s.logCount; i++ {
		log[i] = s.log[(s.logHead+i)%len(s.log)]
	}

	return Snapshot{
		Phase:          s.phase,
		LastMessage:    msg,
		StoragePresent: s.storagePresent,
		StorageBusy:    s.storageBusy,
		Log:            log,
	}
}

// SetPhase records a connection phase transition.
func (s *Store) SetPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// SetMessage stores a copy of the last received payload. Payloads longer
// than the configured maximum are truncated; callers are expected to have
// rejected oversize writes already.
func (s *Store) SetMessage(b []byte) {
	if len(b) > s.maxMessage {
		b = b[:s.maxMessage]
	}
	cp := make([]byte, len(b))
	copy(cp, b)

	s.mu.Lock()
	s.lastMessage = cp
	s.mu.Unlock()
}

// AppendLog adds a line to the event log, evicting the oldest entry when
// the ring is full.
func (s *Store) AppendLog(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logCount < len(s.log) {
		s.log[(s.logHead+s.logCount)%len(s.log)] = text
		s.logCount++
		return
	}
	s.log[s.logHead] = text
	s.logHead = (s.logHead + 1) % len(s.log)
}

// SetStorage records storage presence and activity in one step.
func (s *Store) SetStorage(present, busy bool) {
	s.mu.Lock()
	s.storagePresent = present
	s.storageBusy = busy
	s.mu.Unlock()
}
