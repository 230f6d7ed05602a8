package logic

import "time"

// Detector feeds raw samples through a Debouncer and reports debounced
// state transitions. Like the Debouncer it wraps, a Detector is confined to
// the polling loop goroutine.
type Detector struct {
	debouncer     *Debouncer
	stable        State
	baselined     bool
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
	rejected      int
}

// NewDetector creates a transition detector over a window of capacity
// samples with the given ON threshold.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(capacity int, threshold float64, startTime time.Time) (*Detector, error) {
	d, err := NewDebouncer(capacity, threshold)
	if err != nil {
		return nil, err
	}
	return &Detector{
		debouncer:     d,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}, nil
}

// Process takes a new raw sample and returns the event to emit, if any.
// The first state computed after the window fills is returned as a
// baseline event; afterwards only changes of state produce events.
func (d *Detector) Process(input Input) (*Event, error) {
	if err := d.debouncer.Update(input.Value); err != nil {
		d.rejected++
		return nil, err
	}
	if !d.debouncer.Full() {
		return nil, nil
	}

	state := d.debouncer.State()
	avg, _ := d.debouncer.Average()

	if !d.baselined {
		d.baselined = true
		d.stable = state
		return &Event{
			Timestamp: input.Time,
			Type:      eventTypeFor(state),
			State:     state,
			Average:   avg,
			Baseline:  true,
		}, nil
	}

	if state == d.stable {
		return nil, nil
	}
	d.stable = state

	event := &Event{
		Timestamp: input.Time,
		Type:      eventTypeFor(state),
		State:     state,
		Average:   avg,
	}
	switch event.Type {
	case EventLampOn:
		d.eventCounts.On++
	case EventLampOff:
		d.eventCounts.Off++
	}
	return event, nil
}

func eventTypeFor(s State) EventType {
	if s == StateOn {
		return EventLampOn
	}
	return EventLampOff
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the current stable state. It is empty before the
// baseline is established.
func (d *Detector) CurrentState() State {
	return d.stable
}

// Average returns the current window mean.
func (d *Detector) Average() (float64, error) {
	return d.debouncer.Average()
}

// Rejected returns the number of non-finite samples dropped so far.
func (d *Detector) Rejected() int {
	return d.rejected
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if !d.baselined {
		return nil
	}
	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}
	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}

// EventCountsSnapshot returns a copy of the current event counts.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}
