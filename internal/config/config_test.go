package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	v, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg, err := Unmarshal(v)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if cfg.GPIO.SwitchPin != 23 || cfg.GPIO.LEDPin != 17 {
		t.Errorf("pins: got %d/%d", cfg.GPIO.SwitchPin, cfg.GPIO.LEDPin)
	}
	if cfg.Loop.Poll != 10*time.Millisecond {
		t.Errorf("poll: got %v", cfg.Loop.Poll)
	}
	if cfg.Loop.Mode != ModeModel {
		t.Errorf("mode: got %q", cfg.Loop.Mode)
	}
	if cfg.Debounce.Capacity != 100 || cfg.Debounce.Threshold != 0.75 {
		t.Errorf("debounce: got %+v", cfg.Debounce)
	}
	if cfg.Model.WindowDays != 7 || cfg.Model.IntervalMinutes != 10 {
		t.Errorf("model: got %+v", cfg.Model)
	}
	if cfg.Model.TrainInterval != 3*time.Hour {
		t.Errorf("train interval: got %v", cfg.Model.TrainInterval)
	}
	if cfg.Backup.Interval != 24*time.Hour || !cfg.Backup.OnShutdown {
		t.Errorf("backup: got %+v", cfg.Backup)
	}
	if cfg.Alert.SMTPPort != 587 || cfg.Alert.MinInterval != time.Hour {
		t.Errorf("alert: got %+v", cfg.Alert)
	}
	if cfg.State.File != "/home/pi/code/state.txt" {
		t.Errorf("state file: got %q", cfg.State.File)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lampd.yaml")
	content := `
loop:
  mode: mirror
  poll: 20ms
debounce:
  capacity: 50
model:
  interval_minutes: 30
mqtt:
  broker: tcp://broker:1883
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	v, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg, err := Unmarshal(v)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if cfg.Loop.Mode != ModeMirror || cfg.Loop.Poll != 20*time.Millisecond {
		t.Errorf("loop: got %+v", cfg.Loop)
	}
	if cfg.Debounce.Capacity != 50 {
		t.Errorf("capacity: got %d", cfg.Debounce.Capacity)
	}
	if cfg.Model.IntervalMinutes != 30 {
		t.Errorf("interval: got %d", cfg.Model.IntervalMinutes)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("broker: got %q", cfg.MQTT.Broker)
	}
	// Untouched keys keep defaults.
	if cfg.Debounce.Threshold != 0.75 {
		t.Errorf("threshold: got %v", cfg.Debounce.Threshold)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LAMPD_DEBOUNCE_THRESHOLD", "0.5")
	t.Setenv("LAMPD_HTTP_ADDR", ":8080")

	v, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg, err := Unmarshal(v)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Debounce.Threshold != 0.5 {
		t.Errorf("threshold: got %v", cfg.Debounce.Threshold)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http addr: got %q", cfg.HTTP.Addr)
	}
}

func TestUnmarshalSecretFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		os.WriteFile(p, []byte(content), 0o600)
		return p
	}

	v, _ := LoadConfig(write("lampd.yaml", "{}"))
	v.Set("alert.password_file", write("password", "s3cret\n"))
	v.Set("alert.to_file", write("to", "a@example.com, b@example.com\n"))
	v.Set("backup.dropbox_token_file", write("token", "  tok  "))
	v.Set("alert.from", "lamp@example.com")

	cfg, err := Unmarshal(v)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Alert.Password != "s3cret" {
		t.Errorf("password: got %q", cfg.Alert.Password)
	}
	if cfg.Backup.DropboxToken != "tok" {
		t.Errorf("token: got %q", cfg.Backup.DropboxToken)
	}
	rcpt := cfg.Alert.Recipients()
	if len(rcpt) != 2 || rcpt[0] != "a@example.com" || rcpt[1] != "b@example.com" {
		t.Errorf("recipients: got %v", rcpt)
	}
	if !cfg.Alert.Enabled() {
		t.Error("alert should be enabled")
	}
}

func TestUnmarshalMissingSecretFile(t *testing.T) {
	v, _ := LoadConfig(writeEmpty(t))
	v.Set("alert.password_file", filepath.Join(t.TempDir(), "nope"))
	if _, err := Unmarshal(v); err == nil {
		t.Error("expected error for missing secret file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
		want string
	}{
		{"zero poll", "loop.poll", "0s", "loop.poll"},
		{"bad mode", "loop.mode", "party", "loop.mode"},
		{"zero capacity", "debounce.capacity", 0, "debounce.capacity"},
		{"zero window", "model.window_days", 0, "model.window_days"},
		{"bad interval", "model.interval_minutes", 7, "model.interval_minutes"},
		{"bad source", "model.source", "s3", "model.source"},
		{"sqlite without path", "model.source", "sqlite", "history.path"},
		{"no state file", "state.file", "", "state.file"},
		{"no read errors", "loop.max_read_errors", 0, "loop.max_read_errors"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := LoadConfig(writeEmpty(t))
			v.Set(tt.key, tt.val)
			_, err := Unmarshal(v)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestAlertDisabledWithoutRecipients(t *testing.T) {
	a := AlertConfig{SMTPHost: "smtp.example.com", From: "x@example.com", To: " , "}
	if a.Enabled() {
		t.Error("alert without recipients should be disabled")
	}
}

func writeEmpty(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "lampd.yaml")
	if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
