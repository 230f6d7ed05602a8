// Package logic contains the pure control logic for the lamp: the sample
// debouncer, the transition detector and the daily-cycle usage model.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time or float64 epoch-second parameters.
package logic

import (
	"errors"
	"time"
)

// State represents the debounced state of the lamp switch.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// EventType represents a state transition event.
type EventType string

const (
	EventLampOn  EventType = "LAMP_ON"
	EventLampOff EventType = "LAMP_OFF"
)

// Sentinel errors returned by the core components.
var (
	ErrInvalidCapacity = errors.New("logic: window capacity must be positive")
	ErrEmptyWindow     = errors.New("logic: average of empty sample window")
	ErrNonFinite       = errors.New("logic: sample is not a finite number")
	ErrInvalidInterval = errors.New("logic: interval must be positive and divide 1440 minutes")
	ErrInvalidWindow   = errors.New("logic: window days must be positive")
)

// Input represents a single raw switch sample.
type Input struct {
	Value float64 // raw level, conventionally 0.0-1.0
	Time  time.Time
}

// Event represents a debounced state transition to be logged and published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
	// Average is the window mean that produced this state.
	Average float64
	// Baseline marks the first state established after startup.
	Baseline bool
}

// Transition is one historical record fed into model training.
type Transition struct {
	Timestamp float64 // seconds since epoch
	Value     float64
	Label     string
}

// TransitionFromEvent converts a detector event into a log record.
func TransitionFromEvent(e Event) Transition {
	v := 0.0
	if e.State == StateOn {
		v = 1
	}
	return Transition{
		Timestamp: float64(e.Timestamp.Unix()) + float64(e.Timestamp.Nanosecond())/1e9,
		Value:     v,
	}
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	On  int
	Off int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
