// Package mqtt is the accessory bridge transport. Characteristic values,
// the accessory table and lifecycle events are published to an MQTT broker
// in a homebridge-mqttthing style layout; controllers announce themselves
// on an observers topic.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/climate-bridge/internal/accessory"
)

// Protocol is the name used for this transport in diagnostics.
const Protocol = "MQTT"

// Presence payloads on the observers topic.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Transport delivers characteristic notifications to remote observers.
type Transport interface {
	accessory.Observer

	// Poll services the connection. It is called on every loop iteration
	// and must not block.
	Poll()

	// ConnectedObservers returns the number of controllers currently online.
	ConnectedObservers() int

	// Protocol names the transport for log lines.
	Protocol() string
}

// SystemPublisher publishes lifecycle events.
type SystemPublisher interface {
	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Topics builds the topic names under one prefix.
type Topics struct {
	Prefix string
}

// Accessories is the retained registration table topic.
func (t Topics) Accessories() string { return t.Prefix + "/accessories" }

// Characteristic is the retained value topic of one characteristic.
func (t Topics) Characteristic(accessoryID int, id string) string {
	return fmt.Sprintf("%s/%d/%s", t.Prefix, accessoryID, id)
}

// Observers is the presence subscription filter.
func (t Topics) Observers() string { return t.Prefix + "/observers/+" }

// Identify is the identify request subscription filter.
func (t Topics) Identify() string { return t.Prefix + "/+/identify" }

// System is the lifecycle event topic.
func (t Topics) System() string { return t.Prefix + "/system" }

// ObserverID extracts the controller id from a presence topic.
func (t Topics) ObserverID(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, t.Prefix+"/observers/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// IdentifyAccessory extracts the accessory id from an identify topic.
func (t Topics) IdentifyAccessory(topic string) (int, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/")
	if !ok {
		return 0, false
	}
	idStr, ok := strings.CutSuffix(rest, "/identify")
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, false
	}
	return id, true
}

// FormatValue renders a characteristic value: true/false for booleans,
// shortest decimal for floats.
func FormatValue(v any) ([]byte, error) {
	switch x := v.(type) {
	case bool:
		return []byte(strconv.FormatBool(x)), nil
	case float64:
		return []byte(strconv.FormatFloat(x, 'g', -1, 64)), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// AccessoriesPayload is the registration table as published.
type AccessoriesPayload struct {
	Accessories []accessory.Accessory `json:"accessories"`
}

// FormatAccessories creates the JSON payload for the registration table.
func FormatAccessories(table []accessory.Accessory) ([]byte, error) {
	return json.Marshal(AccessoriesPayload{Accessories: table})
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
