// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/lampd/internal/logic"
)

// Topic is the MQTT topic for lamp transition events.
const Topic = "home/lamp/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/lamp/system"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventSafeMode    = "SAFE_MODE"
	EventOffline     = "OFFLINE"
	EventReconnected = "RECONNECTED"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a lamp event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Lamp LampPayload `json:"lamp"`
}

// LampPayload contains the lamp event details.
type LampPayload struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	State     string  `json:"state"`
	Average   float64 `json:"average"`
	Baseline  bool    `json:"baseline,omitempty"`
}

// FormatPayload creates the JSON payload for a lamp event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Lamp: LampPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			State:     string(event.State),
			Average:   event.Average,
			Baseline:  event.Baseline,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is the retained last-will message the broker publishes when
// the connection drops uncleanly. It has no timestamp because it is
// registered at connect time.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: EventOffline, Reason: "CONNECTION_LOST"})
	return data
}
