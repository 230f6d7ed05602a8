package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/lampd/internal/alert"
	"github.com/sweeney/lampd/internal/backup"
	"github.com/sweeney/lampd/internal/config"
	"github.com/sweeney/lampd/internal/gpio"
	"github.com/sweeney/lampd/internal/logic"
	"github.com/sweeney/lampd/internal/mqtt"
	"github.com/sweeney/lampd/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.IP != "" {
		t.Errorf("IP: got %q, want empty", info.IP)
	}
}

func TestStateString(t *testing.T) {
	if got := stateString(1, 0.75); got != "ON" {
		t.Errorf("stateString(1): got %q", got)
	}
	if got := stateString(0, 0.75); got != "OFF" {
		t.Errorf("stateString(0): got %q", got)
	}
}

// --- runLoop tests ---

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// faultReader wraps a FakeReader and returns errors for a range of Read() calls.
type faultReader struct {
	inner      *gpio.FakeReader
	call       int
	faultStart int // first call index that returns error (inclusive)
	faultEnd   int // last call index that returns error (exclusive)
}

func (r *faultReader) Read() (float64, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return 0, errors.New("gpio fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

type panicReader struct{}

func (panicReader) Read() (float64, error) { panic("switch exploded") }
func (panicReader) Close() error           { return nil }

// memLog records state log appends.
type memLog struct {
	entries []logic.Transition
	err     error
}

func (m *memLog) Append(t logic.Transition) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, t)
	return nil
}

type memHistory struct {
	entries []logic.Transition
	err     error
}

func (m *memHistory) Append(_ context.Context, t logic.Transition) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, t)
	return nil
}

type staticSource struct {
	events []logic.Transition
	err    error
	loads  int
}

func (s *staticSource) Load(context.Context) ([]logic.Transition, error) {
	s.loads++
	return s.events, s.err
}

type testEnv struct {
	cfg      *config.Config
	reader   gpio.Reader
	out      *gpio.FakeOutput
	pub      *mqtt.FakePublisher
	log      *memLog
	hist     *memHistory
	source   *staticSource
	uploader *backup.FakeUploader
	job      *backup.Job
	tracker  *status.Tracker
	model    *logic.DailyCycleModel
}

func newTestEnv(t *testing.T, samples []float64) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Loop:     config.LoopConfig{Poll: 100 * time.Millisecond, Mode: config.ModeModel, MaxReadErrors: 3},
		Debounce: config.DebounceConfig{Capacity: 4, Threshold: 0.75},
		Model:    config.ModelConfig{WindowDays: 7, IntervalMinutes: 60, Source: config.SourceFile},
	}
	model, err := logic.NewDailyCycleModel(cfg.Model.WindowDays, cfg.Model.IntervalMinutes)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{
		cfg:     cfg,
		reader:  gpio.NewFakeReader(samples),
		out:     gpio.NewFakeOutput(),
		pub:     mqtt.NewFakePublisher(),
		log:     &memLog{},
		hist:    &memHistory{},
		source:  &staticSource{},
		job:     backup.NewJob(nil, "", 0, testStart),
		tracker: status.NewTracker("test-run", testStart, status.Config{}),
		model:   model,
	}
}

func (e *testEnv) deps() deps {
	return deps{
		cfg:        e.cfg,
		reader:     e.reader,
		led:        gpio.NewLED(e.out),
		publisher:  e.pub,
		mqttStatus: e.pub,
		tracker:    e.tracker,
		model:      e.model,
		source:     e.source,
		stateLog:   e.log,
		history:    e.hist,
		backup:     e.job,
		logger:     zap.NewNop(),
	}
}

// run drives runLoop with nTicks ticks followed by sig. It returns early if
// the loop exits on its own.
func (e *testEnv) run(t *testing.T, clock func() time.Time, nTicks int, sig os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sigCh := make(chan os.Signal, 1)
	errCh := make(chan error, 1)

	go func() {
		errCh <- runLoop(context.Background(), e.deps(), clock, tick, sigCh)
	}()

	for i := 0; i < nTicks; i++ {
		select {
		case tick <- time.Time{}:
		case err := <-errCh:
			return err
		}
	}
	sigCh <- sig

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not exit after signal")
		return nil
	}
}

func TestRunLoopBaseline(t *testing.T) {
	env := newTestEnv(t, repeat(0, 4))
	if err := env.run(t, fakeClock(testStart, time.Second), 4, syscall.SIGTERM); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(env.log.entries) != 1 || env.log.entries[0].Value != 0 {
		t.Fatalf("expected one OFF baseline entry, got %+v", env.log.entries)
	}
	if env.log.entries[0].Label == "" {
		t.Error("state log entry should carry a human-readable label")
	}
	if len(env.pub.Events) != 1 || !env.pub.Events[0].Baseline {
		t.Fatalf("expected one baseline event, got %+v", env.pub.Events)
	}
	if len(env.hist.entries) != 1 {
		t.Errorf("history: got %d entries, want 1", len(env.hist.entries))
	}
	snap := env.tracker.Snapshot()
	if !snap.Baselined || snap.State != logic.StateOff {
		t.Errorf("tracker: baselined=%v state=%q", snap.Baselined, snap.State)
	}
}

func TestRunLoopTransitions(t *testing.T) {
	env := newTestEnv(t, concat(repeat(0, 4), repeat(1, 4), repeat(0, 4)))
	if err := env.run(t, fakeClock(testStart, time.Second), 12, syscall.SIGTERM); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var values []float64
	for _, e := range env.log.entries {
		values = append(values, e.Value)
	}
	if len(values) != 3 || values[0] != 0 || values[1] != 1 || values[2] != 0 {
		t.Fatalf("state log values: got %v, want [0 1 0]", values)
	}
	for i := 1; i < len(env.log.entries); i++ {
		if env.log.entries[i].Timestamp <= env.log.entries[i-1].Timestamp {
			t.Errorf("entry %d not after entry %d", i, i-1)
		}
	}
	if len(env.pub.Events) != 3 {
		t.Errorf("published events: got %d, want 3", len(env.pub.Events))
	}
	counts := env.tracker.Snapshot().Counts
	if counts.On != 1 || counts.Off != 1 {
		t.Errorf("counts: got %+v, want 1/1", counts)
	}
}

func TestRunLoopBounceRejection(t *testing.T) {
	samples := concat(repeat(0, 4), []float64{1, 0, 1, 0, 1, 0, 0, 1})
	env := newTestEnv(t, samples)
	if err := env.run(t, fakeClock(testStart, time.Second), len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.log.entries) != 1 {
		t.Errorf("bouncing input should only produce the baseline, got %+v", env.log.entries)
	}
}

func TestRunLoopReadErrorsRecover(t *testing.T) {
	env := newTestEnv(t, nil)
	env.reader = &faultReader{inner: gpio.NewFakeReader(repeat(1, 8)), faultStart: 2, faultEnd: 4}

	if err := env.run(t, fakeClock(testStart, time.Second), 8, syscall.SIGTERM); err != nil {
		t.Fatalf("transient read errors must not stop the loop: %v", err)
	}
	if got := env.tracker.Snapshot().ReadErrors; got != 2 {
		t.Errorf("ReadErrors: got %d, want 2", got)
	}
	if len(env.log.entries) != 1 || env.log.entries[0].Value != 1 {
		t.Errorf("expected ON baseline after recovery, got %+v", env.log.entries)
	}
}

func TestRunLoopPersistentReadErrorsFail(t *testing.T) {
	env := newTestEnv(t, nil)
	fr := gpio.NewFakeReader(repeat(0, 1))
	fr.ReadError = errors.New("line gone")
	env.reader = fr

	err := env.run(t, fakeClock(testStart, time.Second), 10, syscall.SIGTERM)
	if err == nil {
		t.Fatal("expected error after consecutive read failures")
	}
	if !strings.Contains(err.Error(), "3 consecutive") {
		t.Errorf("error should report the failure count: %v", err)
	}
	if len(stackOf(err)) == 0 {
		t.Error("failure should carry a stack trace")
	}
}

func TestRunLoopNonFiniteSamplesCountAsErrors(t *testing.T) {
	env := newTestEnv(t, []float64{math.NaN()})
	err := env.run(t, fakeClock(testStart, time.Second), 5, syscall.SIGTERM)
	if !errors.Is(err, logic.ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
}

func TestRunLoopStateLogFailureIsFatal(t *testing.T) {
	env := newTestEnv(t, repeat(1, 4))
	env.log.err = errors.New("disk full")

	err := env.run(t, fakeClock(testStart, time.Second), 10, syscall.SIGTERM)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected state log error, got %v", err)
	}
}

func TestRunLoopHistoryAndPublishErrorsContinue(t *testing.T) {
	env := newTestEnv(t, concat(repeat(0, 4), repeat(1, 4)))
	env.hist.err = errors.New("database locked")
	env.pub.PublishError = errors.New("broker down")

	if err := env.run(t, fakeClock(testStart, time.Second), 8, syscall.SIGTERM); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.log.entries) != 2 {
		t.Errorf("state log should still record transitions, got %d", len(env.log.entries))
	}
}

func TestRunLoopShutdownSignals(t *testing.T) {
	for _, tc := range []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			env := newTestEnv(t, repeat(0, 4))
			if err := env.run(t, fakeClock(testStart, time.Second), 0, tc.sig); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			names := env.pub.SystemEventNames()
			if len(names) != 1 || names[0] != mqtt.EventShutdown {
				t.Fatalf("system events: got %v, want [SHUTDOWN]", names)
			}
			se := env.pub.SystemEvents[0]
			if se.Reason != tc.want {
				t.Errorf("reason: got %q, want %q", se.Reason, tc.want)
			}
			if !se.Retained {
				t.Error("shutdown should be retained")
			}
			if !bytes.Contains(se.RawPayload, []byte(tc.want)) {
				t.Errorf("payload missing reason: %s", se.RawPayload)
			}
		})
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	env := newTestEnv(t, repeat(0, 8))
	env.cfg.Loop.Heartbeat = 15 * time.Minute

	// Baseline on tick 4 at +20m; the next heartbeat is due at +35m.
	if err := env.run(t, fakeClock(testStart, 5*time.Minute), 6, syscall.SIGTERM); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := env.pub.SystemEventNames()
	want := []string{mqtt.EventHeartbeat, mqtt.EventShutdown}
	if len(names) != len(want) {
		t.Fatalf("system events: got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("event %d: got %q, want %q", i, names[i], want[i])
		}
	}
	if env.pub.SystemEvents[0].Retained {
		t.Error("heartbeat should not be retained")
	}
}

func TestRunLoopMirrorMode(t *testing.T) {
	env := newTestEnv(t, []float64{0, 1, 0.5, 0.5, 1})
	env.cfg.Loop.Mode = config.ModeMirror

	if err := env.run(t, fakeClock(testStart, time.Second), 5, syscall.SIGTERM); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{0, 100, 50, 100}
	if len(env.out.Levels) != len(want) {
		t.Fatalf("LED levels: got %v, want %v", env.out.Levels, want)
	}
	for i := range want {
		if env.out.Levels[i] != want[i] {
			t.Errorf("level %d: got %v, want %v", i, env.out.Levels[i], want[i])
		}
	}
	if len(env.log.entries) != 0 || len(env.pub.Events) != 0 {
		t.Error("mirror mode must not record transitions")
	}
	if env.source.loads != 0 {
		t.Error("mirror mode must not train")
	}
}

func TestRunLoopLEDFollowsModel(t *testing.T) {
	env := newTestEnv(t, repeat(0, 10))
	env.cfg.Model.WindowDays = 2
	env.cfg.Model.IntervalMinutes = 1440
	model, _ := logic.NewDailyCycleModel(2, 1440)
	env.model = model

	midnight := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	env.source.events = []logic.Transition{
		{Timestamp: epochSeconds(midnight.Add(-24 * time.Hour)), Value: 1},
	}

	clock := fakeClock(midnight, time.Second)
	if err := env.run(t, clock, 3, syscall.SIGTERM); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ref, _ := logic.NewDailyCycleModel(2, 1440)
	ref.Train(env.source.events, epochSeconds(midnight.Add(time.Second)))
	want := ref.Predict(epochSeconds(midnight.Add(3 * time.Second)))
	if want <= 0 {
		t.Fatalf("reference prediction should be positive, got %v", want)
	}
	if got := env.out.Last(); got != want {
		t.Errorf("LED: got %v, want %v", got, want)
	}
	if len(env.out.Levels) != 1 {
		t.Errorf("unchanged duty must not be rewritten: %v", env.out.Levels)
	}
	if env.source.loads != 1 {
		t.Errorf("train interval 0 trains once at startup, got %d loads", env.source.loads)
	}
	tr := env.tracker.Snapshot().Training
	if tr == nil || tr.Stats.Events != 1 {
		t.Errorf("training info: got %+v", tr)
	}
	if got := env.tracker.Snapshot().Duty; got != want {
		t.Errorf("tracker duty: got %v, want %v", got, want)
	}
}

func TestRunLoopPeriodicTraining(t *testing.T) {
	env := newTestEnv(t, repeat(0, 5))
	env.cfg.Model.TrainInterval = time.Hour

	// Ticks at +30m..+150m: trains at 30m, 90m and 150m.
	if err := env.run(t, fakeClock(testStart, 30*time.Minute), 5, syscall.SIGTERM); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.source.loads != 3 {
		t.Errorf("loads: got %d, want 3", env.source.loads)
	}
}

func TestRunLoopTrainingFailureKeepsRunning(t *testing.T) {
	env := newTestEnv(t, repeat(0, 4))
	env.source.err = errors.New("log unreadable")

	if err := env.run(t, fakeClock(testStart, time.Second), 4, syscall.SIGTERM); err != nil {
		t.Fatalf("training failure must not stop the loop: %v", err)
	}
	tr := env.tracker.Snapshot().Training
	if tr == nil || tr.Err == "" {
		t.Fatalf("expected training error recorded, got %+v", tr)
	}
	if env.model.Trained() {
		t.Error("model should stay untrained")
	}
}

func TestRunLoopPeriodicBackup(t *testing.T) {
	env := newTestEnv(t, repeat(0, 5))
	path := t.TempDir() + "/lamp_state.txt"
	if err := os.WriteFile(path, []byte("1.0 1 x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	env.uploader = &backup.FakeUploader{}
	env.job = backup.NewJob(env.uploader, path, time.Hour, testStart)

	if err := env.run(t, fakeClock(testStart, 30*time.Minute), 5, syscall.SIGTERM); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.uploader.Uploads) != 2 {
		t.Fatalf("uploads: got %d, want 2", len(env.uploader.Uploads))
	}
	if env.uploader.Uploads[0].RemotePath == env.uploader.Uploads[1].RemotePath {
		t.Error("each backup should use a distinct remote path")
	}
	b := env.tracker.Snapshot().Backup
	if b == nil || b.Err != "" || b.Remote != env.uploader.Uploads[1].RemotePath {
		t.Errorf("backup info: got %+v", b)
	}
}

func TestRunLoopBackupFailureKeepsRunning(t *testing.T) {
	env := newTestEnv(t, repeat(0, 3))
	env.uploader = &backup.FakeUploader{UploadError: errors.New("quota exceeded")}
	env.job = backup.NewJob(env.uploader, "/nonexistent", time.Hour, testStart)

	if err := env.run(t, fakeClock(testStart, time.Hour), 3, syscall.SIGTERM); err != nil {
		t.Fatalf("backup failure must not stop the loop: %v", err)
	}
	b := env.tracker.Snapshot().Backup
	if b == nil || b.Err == "" {
		t.Errorf("expected backup error recorded, got %+v", b)
	}
}

func TestRunLoopLEDFailureIsFatal(t *testing.T) {
	env := newTestEnv(t, repeat(0, 4))
	env.out.SetError = errors.New("pwm gone")

	err := env.run(t, fakeClock(testStart, time.Second), 4, syscall.SIGTERM)
	if err == nil || !strings.Contains(err.Error(), "pwm gone") {
		t.Fatalf("expected LED error, got %v", err)
	}
}

func TestRunLoopRecoversPanic(t *testing.T) {
	env := newTestEnv(t, nil)
	env.reader = panicReader{}

	err := env.run(t, fakeClock(testStart, time.Second), 1, syscall.SIGTERM)
	if err == nil || !strings.Contains(err.Error(), "switch exploded") {
		t.Fatalf("expected panic converted to error, got %v", err)
	}
	if len(stackOf(err)) == 0 {
		t.Error("panic should carry a stack trace")
	}
}

func TestEnterSafeMode(t *testing.T) {
	env := newTestEnv(t, nil)
	d := env.deps()
	notifier := &alert.FakeNotifier{}
	out := gpio.NewFakeOutput()
	sm := &alert.SafeMode{Notifier: notifier, Output: out, Logger: zap.NewNop()}

	blink := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	done := make(chan struct{})
	cause := fail(errors.New("state log unwritable"))

	go func() {
		enterSafeMode(d, sm, cause, testStart, blink, sig)
		close(done)
	}()
	blink <- time.Time{}
	blink <- time.Time{}
	sig <- syscall.SIGINT

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("safe mode did not stop on signal")
	}

	if len(notifier.Alerts) != 1 {
		t.Fatalf("notifications: got %d, want 1", len(notifier.Alerts))
	}
	if !strings.Contains(notifier.Alerts[0].Body, "state log unwritable") {
		t.Errorf("body missing cause: %s", notifier.Alerts[0].Body)
	}
	want := []float64{100, 0, 100}
	if len(out.Levels) != len(want) {
		t.Fatalf("levels: got %v, want %v", out.Levels, want)
	}
	for i := range want {
		if out.Levels[i] != want[i] {
			t.Errorf("level %d: got %v, want %v", i, out.Levels[i], want[i])
		}
	}
	names := env.pub.SystemEventNames()
	if len(names) != 1 || names[0] != mqtt.EventSafeMode {
		t.Errorf("system events: got %v", names)
	}
	if env.tracker.Snapshot().SafeMode == "" {
		t.Error("tracker should record safe mode")
	}
}

func TestDumpModel(t *testing.T) {
	model, _ := logic.NewDailyCycleModel(1, 720)
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	src := &staticSource{events: []logic.Transition{
		{Timestamp: epochSeconds(now.Add(-12 * time.Hour)), Value: 1},
	}}

	var buf bytes.Buffer
	if err := dumpModel(context.Background(), &buf, src, model, now); err != nil {
		t.Fatalf("dumpModel: %v", err)
	}

	var got modelDump
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
	if got.WindowDays != 1 || got.IntervalMinutes != 720 || got.Events != 1 {
		t.Errorf("header: %+v", got)
	}
	if len(got.Bins) != 2 {
		t.Fatalf("bins: got %d, want 2", len(got.Bins))
	}
	if got.Bins[0].StartUTC != "00:00" || got.Bins[1].StartUTC != "12:00" {
		t.Errorf("bin starts: %q %q", got.Bins[0].StartUTC, got.Bins[1].StartUTC)
	}
	if got.Bins[1].Level != 1 {
		t.Errorf("afternoon level: got %v, want 1", got.Bins[1].Level)
	}
}

func TestDumpModelLoadError(t *testing.T) {
	model, _ := logic.NewDailyCycleModel(1, 60)
	src := &staticSource{err: errors.New("no file")}
	if err := dumpModel(context.Background(), &bytes.Buffer{}, src, model, testStart); err == nil {
		t.Error("expected load error")
	}
}
