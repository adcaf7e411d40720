package gatt

import (
	"fmt"
	"log/slog"
	"time"

	"tinygo.org/x/bluetooth"
)

// advInterval matches the firmware's 250ms advertising cadence.
const advInterval = 250 * time.Millisecond

// TinygoRadio implements Radio on tinygo.org/x/bluetooth, driving the host
// BLE stack in peripheral mode. Stack callbacks arrive on the library's own
// goroutines; they are converted to Events and posted to a buffered channel
// drained by the coordination loop, so no handler ever touches shared state
// directly.
type TinygoRadio struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	txChar  bluetooth.Characteristic
	events  chan Event

	configured bool
}

// NewTinygoRadio creates a radio on the default host adapter.
func NewTinygoRadio() *TinygoRadio {
	return &TinygoRadio{
		adapter: bluetooth.DefaultAdapter,
		events:  make(chan Event, 32),
	}
}

// Enable powers on the stack, registers the KeyMaster service, and hooks
// connect/disconnect delivery.
func (r *TinygoRadio) Enable() error {
	if err := r.adapter.Enable(); err != nil {
		return fmt.Errorf("gatt: enable adapter: %w", err)
	}

	r.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			r.post(Event{Kind: EventConnected, Peer: device.Address.String()})
			// The stack only delivers notifications to centrals that
			// subscribed; CCCD changes are not surfaced by the library,
			// so subscription is assumed on connect.
			r.post(Event{Kind: EventSubscribed})
			return
		}
		r.post(Event{Kind: EventDisconnected})
	})

	serviceUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return fmt.Errorf("gatt: parse service UUID: %w", err)
	}
	txUUID, err := bluetooth.ParseUUID(TXCharUUID)
	if err != nil {
		return fmt.Errorf("gatt: parse TX UUID: %w", err)
	}
	rxUUID, err := bluetooth.ParseUUID(RXCharUUID)
	if err != nil {
		return fmt.Errorf("gatt: parse RX UUID: %w", err)
	}

	err = r.adapter.AddService(&bluetooth.Service{
		UUID: serviceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &r.txChar,
				UUID:   txUUID,
				Flags:  bluetooth.CharacteristicNotifyPermission | bluetooth.CharacteristicReadPermission,
			},
			{
				UUID:  rxUUID,
				Flags: bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					if offset != 0 {
						return
					}
					// The stack reuses the value buffer after the callback
					// returns.
					payload := make([]byte, len(value))
					copy(payload, value)
					r.post(Event{Kind: EventRxWrite, Payload: payload})
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("gatt: add service: %w", err)
	}
	return nil
}

// Advertise starts broadcasting the local name and service UUID. The
// advertisement is configured once and restarted on subsequent calls.
func (r *TinygoRadio) Advertise(name, serviceUUID string) error {
	if !r.configured {
		uuid, err := bluetooth.ParseUUID(serviceUUID)
		if err != nil {
			return fmt.Errorf("gatt: parse advertised UUID: %w", err)
		}
		r.adv = r.adapter.DefaultAdvertisement()
		err = r.adv.Configure(bluetooth.AdvertisementOptions{
			LocalName:    name,
			ServiceUUIDs: []bluetooth.UUID{uuid},
			Interval:     bluetooth.NewDuration(advInterval),
		})
		if err != nil {
			return fmt.Errorf("gatt: configure advertisement: %w", err)
		}
		r.configured = true
	}
	if err := r.adv.Start(); err != nil {
		return fmt.Errorf("gatt: start advertisement: %w", err)
	}
	return nil
}

// StopAdvertising halts the active advertisement.
func (r *TinygoRadio) StopAdvertising() error {
	if r.adv == nil {
		return nil
	}
	if err := r.adv.Stop(); err != nil {
		return fmt.Errorf("gatt: stop advertisement: %w", err)
	}
	return nil
}

// Notify writes the TX characteristic, which sends a notification to the
// subscribed central.
func (r *TinygoRadio) Notify(data []byte) error {
	if _, err := r.txChar.Write(data); err != nil {
		return fmt.Errorf("gatt: tx write: %w", err)
	}
	return nil
}

// Events returns the link-layer event stream.
func (r *TinygoRadio) Events() <-chan Event { return r.events }

// post delivers an event without ever blocking a stack callback. A full
// queue means the coordination loop has stalled; dropping is the only safe
// option.
func (r *TinygoRadio) post(ev Event) {
	select {
	case r.events <- ev:
	default:
		slog.Warn("[GATT] event queue full, dropping", "kind", ev.Kind)
	}
}
