// Package status provides a thread-safe status tracker for the lampd daemon.
// It is read by the HTTP handlers and by the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/lampd/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Mode            string
	PollMs          int64
	Capacity        int
	Threshold       float64
	HeartbeatMs     int64
	WindowDays      int
	IntervalMinutes int
	TrainIntervalMs int64
	Broker          string
	HTTPAddr        string
}

// TrainingInfo describes the most recent model training.
type TrainingInfo struct {
	At      time.Time
	Stats   logic.TrainStats
	Err     string
	Elapsed time.Duration
}

// BackupInfo describes the most recent backup attempt.
type BackupInfo struct {
	At     time.Time
	Remote string
	Err    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	RunID         string
	State         logic.State
	Average       float64
	Duty          float64
	Baselined     bool
	Counts        logic.EventCounts
	ReadErrors    int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Training      *TrainingInfo
	Backup        *BackupInfo
	SafeMode      string // failure reason; empty while running normally
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(runID string, startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			RunID:     runID,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the debounced state, window average, baseline status and
// event counts. Called from runLoop on every tick.
func (t *Tracker) Update(state logic.State, average float64, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Average = average
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetDuty records the duty cycle currently driven on the LED.
func (t *Tracker) SetDuty(duty float64) {
	t.mu.Lock()
	t.snap.Duty = duty
	t.mu.Unlock()
}

// SetReadErrors records the total number of failed switch reads.
func (t *Tracker) SetReadErrors(n int) {
	t.mu.Lock()
	t.snap.ReadErrors = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// SetTraining records the outcome of a model training.
func (t *Tracker) SetTraining(info TrainingInfo) {
	t.mu.Lock()
	t.snap.Training = &info
	t.mu.Unlock()
}

// SetBackup records the outcome of a backup attempt.
func (t *Tracker) SetBackup(info BackupInfo) {
	t.mu.Lock()
	t.snap.Backup = &info
	t.mu.Unlock()
}

// SetSafeMode marks the daemon as failed with the given reason.
func (t *Tracker) SetSafeMode(reason string) {
	t.mu.Lock()
	t.snap.SafeMode = reason
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	if s.Training != nil {
		tr := *s.Training
		s.Training = &tr
	}
	if s.Backup != nil {
		b := *s.Backup
		s.Backup = &b
	}
	s.Now = time.Now()
	return s
}
