// Package gatt implements the KeyMaster BLE peripheral: the GATT echo
// service and the session state machine that owns the connection lifecycle.
// The radio itself is abstracted behind the Radio interface so the state
// machine can be driven by a real BLE stack or by a mock in tests.
package gatt

// KeyMaster GATT profile. A central writes payloads to RX and, if it has
// subscribed to TX, receives each payload echoed back unmodified.
const (
	ServiceUUID = "a0e1b2c3-d4e5-f6a7-b8c9-0a1b2c3d4e50"
	TXCharUUID  = "a0e1b2c3-d4e5-f6a7-b8c9-0a1b2c3d4e51" // notify, server -> client
	RXCharUUID  = "a0e1b2c3-d4e5-f6a7-b8c9-0a1b2c3d4e52" // write, client -> server

	// LocalName is the advertised device name.
	LocalName = "KeyMaster"
)

// EventKind identifies a link-layer event delivered by a Radio.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventSubscribed   // central enabled notifications on TX
	EventUnsubscribed // central disabled notifications on TX
	EventRxWrite      // central wrote to RX; Payload holds the bytes
	EventRadioError   // unrecoverable radio failure; Err holds the cause
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventSubscribed:
		return "subscribed"
	case EventUnsubscribed:
		return "unsubscribed"
	case EventRxWrite:
		return "rx-write"
	case EventRadioError:
		return "radio-error"
	default:
		return "unknown"
	}
}

// Event is a single link-layer event. Payload is only set for EventRxWrite,
// Err only for EventRadioError, Peer (when known) for EventConnected.
type Event struct {
	Kind    EventKind
	Payload []byte
	Peer    string
	Err     error
}

// Radio abstracts the BLE link layer. Implementations deliver connect,
// disconnect, subscription, and write events on the Events channel and must
// never block on it.
type Radio interface {
	// Enable powers on the radio and registers the GATT service.
	Enable() error
	// Advertise broadcasts the given local name and service UUID until a
	// central connects. Advertising must be restartable after a disconnect.
	Advertise(name, serviceUUID string) error
	// StopAdvertising halts an active advertisement.
	StopAdvertising() error
	// Notify sends a TX notification to the connected central.
	Notify(data []byte) error
	// Events returns the link-layer event stream.
	Events() <-chan Event
}
