package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	RunID         string        `json:"run_id"`
	State         string        `json:"state"`
	Average       float64       `json:"average"`
	LEDDuty       float64       `json:"led_duty"`
	Ready         bool          `json:"ready"`
	ReadErrors    int           `json:"read_errors"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Training      *TrainingJSON `json:"training,omitempty"`
	Backup        *BackupJSON   `json:"backup,omitempty"`
	SafeMode      string        `json:"safe_mode,omitempty"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	LampOn  int `json:"lamp_on"`
	LampOff int `json:"lamp_off"`
}

// TrainingJSON is the JSON representation of the last training.
type TrainingJSON struct {
	At        string `json:"at"`
	Events    int    `json:"events"`
	Skipped   int    `json:"skipped"`
	Samples   int    `json:"samples"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

// BackupJSON is the JSON representation of the last backup.
type BackupJSON struct {
	At     string `json:"at"`
	Remote string `json:"remote"`
	Error  string `json:"error,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Mode            string  `json:"mode"`
	PollMs          int64   `json:"poll_ms"`
	Capacity        int     `json:"capacity"`
	Threshold       float64 `json:"threshold"`
	HeartbeatMs     int64   `json:"heartbeat_ms"`
	WindowDays      int     `json:"window_days"`
	IntervalMinutes int     `json:"interval_minutes"`
	TrainIntervalMs int64   `json:"train_interval_ms"`
	Broker          string  `json:"broker"`
	HTTPAddr        string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		RunID:         snap.RunID,
		State:         state,
		Average:       snap.Average,
		LEDDuty:       snap.Duty,
		Ready:         snap.Baselined,
		ReadErrors:    snap.ReadErrors,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			LampOn:  snap.Counts.On,
			LampOff: snap.Counts.Off,
		},
		SafeMode: snap.SafeMode,
		Config: ConfigJSON{
			Mode:            snap.Config.Mode,
			PollMs:          snap.Config.PollMs,
			Capacity:        snap.Config.Capacity,
			Threshold:       snap.Config.Threshold,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			WindowDays:      snap.Config.WindowDays,
			IntervalMinutes: snap.Config.IntervalMinutes,
			TrainIntervalMs: snap.Config.TrainIntervalMs,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
		},
	}

	if tr := snap.Training; tr != nil {
		inner.Training = &TrainingJSON{
			At:        tr.At.UTC().Format(time.RFC3339),
			Events:    tr.Stats.Events,
			Skipped:   tr.Stats.Skipped,
			Samples:   tr.Stats.Samples,
			ElapsedMs: tr.Elapsed.Milliseconds(),
			Error:     tr.Err,
		}
	}
	if b := snap.Backup; b != nil {
		inner.Backup = &BackupJSON{
			At:     b.At.UTC().Format(time.RFC3339),
			Remote: b.Remote,
			Error:  b.Err,
		}
	}
	if n := snap.Network; n != nil {
		inner.Network = &NetworkJSON{
			Type:       n.Type,
			IP:         n.IP,
			Status:     n.Status,
			Gateway:    n.Gateway,
			WifiStatus: n.WifiStatus,
			SSID:       n.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
