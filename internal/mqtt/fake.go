package mqtt

import (
	"github.com/sweeney/climate-bridge/internal/accessory"
)

// FakeTransport records notifications and system events for test assertions.
type FakeTransport struct {
	// Notifications contains every characteristic event delivered by Notify.
	Notifications []accessory.Event

	// Payloads contains the formatted value of each notification.
	Payloads [][]byte

	// Polls counts calls to Poll.
	Polls int

	// Observers is returned by ConnectedObservers.
	Observers int

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakeTransport creates a FakeTransport for testing.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

// Notify records the characteristic event.
func (f *FakeTransport) Notify(ev accessory.Event) {
	f.Notifications = append(f.Notifications, ev)
	payload, err := FormatValue(ev.Value)
	if err != nil {
		payload = nil
	}
	f.Payloads = append(f.Payloads, payload)
}

// Poll counts the call.
func (f *FakeTransport) Poll() {
	f.Polls++
}

// ConnectedObservers returns f.Observers.
func (f *FakeTransport) ConnectedObservers() int {
	return f.Observers
}

// Protocol returns "MQTT".
func (f *FakeTransport) Protocol() string {
	return Protocol
}

// PublishSystem records the system event.
func (f *FakeTransport) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the transport as closed.
func (f *FakeTransport) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake transport is "connected".
func (f *FakeTransport) IsConnected() bool {
	return f.Connected
}

// Characteristics returns the ids of the notified characteristics in order.
func (f *FakeTransport) Characteristics() []string {
	ids := make([]string, len(f.Notifications))
	for i, ev := range f.Notifications {
		ids[i] = ev.Characteristic
	}
	return ids
}

// Reset clears recorded state.
func (f *FakeTransport) Reset() {
	f.Notifications = nil
	f.Payloads = nil
	f.Polls = 0
	f.Observers = 0
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.PublishSystemError = nil
	f.Closed = false
	f.Connected = false
}
