// Command lampd watches a lamp switch, learns when the lamp is usually on
// and drives an LED from that daily pattern.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/lampd/internal/alert"
	"github.com/sweeney/lampd/internal/backup"
	"github.com/sweeney/lampd/internal/config"
	"github.com/sweeney/lampd/internal/gpio"
	"github.com/sweeney/lampd/internal/history"
	"github.com/sweeney/lampd/internal/logic"
	"github.com/sweeney/lampd/internal/metrics"
	"github.com/sweeney/lampd/internal/mqtt"
	"github.com/sweeney/lampd/internal/statelog"
	"github.com/sweeney/lampd/internal/status"
	"github.com/sweeney/lampd/internal/web"
)

// blinkInterval is the half-period of the safe-mode LED pattern.
const blinkInterval = 500 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (default: lampd.yaml in ., ./configs or /etc/lampd)")
	printState := flag.Bool("print-state", false, "Print one raw switch sample and exit")
	printModel := flag.Bool("print-model", false, "Train the model from history, print it as YAML and exit")

	flag.Parse()

	v, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lampd: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lampd: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Unmarshal(v)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	if err := run(cfg, logger, *printState, *printModel); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, printState, printModel bool) error {
	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Print state mode
	if printState {
		reader, err := openReader(cfg)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer reader.Close()
		v, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("Switch: %s (%v)\n", stateString(v, cfg.Debounce.Threshold), v)
		return nil
	}

	model, err := logic.NewDailyCycleModel(cfg.Model.WindowDays, cfg.Model.IntervalMinutes)
	if err != nil {
		return fmt.Errorf("init model: %w", err)
	}

	var store *history.Store
	if cfg.History.Path != "" {
		store, err = openHistory(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
	}
	source := trainingSource(cfg, store, logger)

	if printModel {
		return dumpModel(ctx, os.Stdout, source, model, time.Now())
	}

	reader, err := openReader(cfg)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	output, err := openOutput(cfg)
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	led := gpio.NewLED(output)
	defer led.Close()

	stateLog, err := statelog.Open(cfg.State.File, time.Local)
	if err != nil {
		return err
	}
	defer stateLog.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	publisher, mqttStatus, err := openPublisher(cfg, runID, logger)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	startTime := time.Now()
	tracker := status.NewTracker(runID, startTime, statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := deps{
		cfg:        cfg,
		reader:     reader,
		led:        led,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		model:      model,
		source:     source,
		stateLog:   stateLog,
		backup:     backup.NewJob(newUploader(cfg, logger), cfg.State.File, cfg.Backup.Interval, startTime),
		logger:     logger,
	}
	if store != nil {
		d.history = store
	}

	// Publish startup event with full status snapshot
	publishStatus(d, startTime, mqtt.EventStartup, "")

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, model, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			srv.Shutdown(sctx)
		}()
		logger.Info("http status server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	logger.Info("started",
		zap.String("mode", cfg.Loop.Mode),
		zap.Duration("poll", cfg.Loop.Poll),
		zap.Int("capacity", cfg.Debounce.Capacity),
		zap.Float64("threshold", cfg.Debounce.Threshold),
		zap.String("broker", cfg.MQTT.Broker),
		zap.Bool("backup", d.backup.Enabled()),
	)

	ticker := time.NewTicker(cfg.Loop.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	loopErr := runLoop(ctx, d, time.Now, ticker.C, sigCh)
	if loopErr != nil {
		ticker.Stop()
		blink := time.NewTicker(blinkInterval)
		sm := &alert.SafeMode{Notifier: newNotifier(cfg, logger), Output: output, Logger: logger}
		enterSafeMode(d, sm, loopErr, time.Now(), blink.C, sigCh)
		blink.Stop()
	}

	if cfg.Backup.OnShutdown && d.backup.Enabled() {
		bctx, bcancel := context.WithTimeout(ctx, 30*time.Second)
		runBackup(bctx, d, time.Now())
		bcancel()
	}
	logger.Info("cleaned up")
	return loopErr
}

// enterSafeMode reports the failure and blinks the LED until a signal
// arrives.
func enterSafeMode(d deps, sm *alert.SafeMode, cause error, now time.Time, blink <-chan time.Time, sig <-chan os.Signal) {
	d.logger.Error("control loop failed, entering safe mode", zap.Error(cause))
	d.tracker.SetSafeMode(cause.Error())
	publishStatus(d, now, mqtt.EventSafeMode, cause.Error())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case s := <-sig:
			d.logger.Info("leaving safe mode", zap.String("signal", s.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	sm.Run(ctx, cause, stackOf(cause), now, blink)
}

func openReader(cfg *config.Config) (gpio.Reader, error) {
	if cfg.GPIO.Simulate {
		return gpio.NewSimReader(time.Now().UnixNano()), nil
	}
	r, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.SwitchPin)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func openOutput(cfg *config.Config) (gpio.Output, error) {
	if cfg.GPIO.Simulate {
		return gpio.NopOutput{}, nil
	}
	p, err := gpio.NewRealPWM(cfg.GPIO.Chip, cfg.GPIO.LEDPin, cfg.GPIO.LEDFreq)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// openHistory opens the SQLite mirror and seeds it from the state log the
// first time it is used.
func openHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*history.Store, error) {
	store, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	n, err := store.Count(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("count history: %w", err)
	}
	if n > 0 {
		return store, nil
	}

	res, err := statelog.ReadFile(cfg.State.File)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("seed history: %w", err)
	}
	if len(res.Transitions) > 0 {
		if err := store.Import(ctx, res.Transitions); err != nil {
			store.Close()
			return nil, fmt.Errorf("seed history: %w", err)
		}
		logger.Info("seeded history from state log",
			zap.String("path", cfg.State.File),
			zap.Int("transitions", len(res.Transitions)),
			zap.Int("malformed", len(res.Malformed)),
		)
	}
	return store, nil
}

func trainingSource(cfg *config.Config, store *history.Store, logger *zap.Logger) transitionSource {
	if cfg.Model.Source == config.SourceSQLite && store != nil {
		return store
	}
	return statelog.NewFileSource(cfg.State.File, logger)
}

func openPublisher(cfg *config.Config, runID string, logger *zap.Logger) (mqtt.Publisher, mqtt.ConnectionStatus, error) {
	if cfg.MQTT.Broker == "" {
		logger.Info("mqtt disabled")
		return mqtt.NopPublisher{}, nil, nil
	}
	p, err := mqtt.NewRealPublisher(mqtt.Config{
		Broker:   cfg.MQTT.Broker,
		ClientID: fmt.Sprintf("%s-%s", cfg.MQTT.ClientID, runID[:8]),
		Logger:   logger.Named("mqtt"),
	})
	if err != nil {
		return nil, nil, err
	}
	return p, p, nil
}

func newUploader(cfg *config.Config, logger *zap.Logger) backup.Uploader {
	switch {
	case cfg.Backup.DropboxToken != "":
		return backup.NewDropboxUploader(cfg.Backup.DropboxToken, logger.Named("backup"))
	case cfg.Backup.Dir != "":
		return backup.NewDirUploader(cfg.Backup.Dir)
	}
	logger.Info("backups disabled")
	return nil
}

func newNotifier(cfg *config.Config, logger *zap.Logger) alert.Notifier {
	if !cfg.Alert.Enabled() {
		logger.Warn("alert email not configured")
		return nil
	}
	n, err := alert.NewEmailNotifier(alert.EmailConfig{
		Host:        cfg.Alert.SMTPHost,
		Port:        cfg.Alert.SMTPPort,
		Username:    cfg.Alert.Username,
		Password:    cfg.Alert.Password,
		From:        cfg.Alert.Sender(),
		To:          cfg.Alert.Recipients(),
		MinInterval: cfg.Alert.MinInterval,
	}, logger.Named("alert"))
	if err != nil {
		logger.Warn("alert email disabled", zap.Error(err))
		return nil
	}
	return n
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Mode:            cfg.Loop.Mode,
		PollMs:          cfg.Loop.Poll.Milliseconds(),
		Capacity:        cfg.Debounce.Capacity,
		Threshold:       cfg.Debounce.Threshold,
		HeartbeatMs:     cfg.Loop.Heartbeat.Milliseconds(),
		WindowDays:      cfg.Model.WindowDays,
		IntervalMinutes: cfg.Model.IntervalMinutes,
		TrainIntervalMs: cfg.Model.TrainInterval.Milliseconds(),
		Broker:          cfg.MQTT.Broker,
		HTTPAddr:        cfg.HTTP.Addr,
	}
}

// modelDump is the YAML form printed by -print-model.
type modelDump struct {
	WindowDays      int       `yaml:"window_days"`
	IntervalMinutes int       `yaml:"interval_minutes"`
	TrainedAt       string    `yaml:"trained_at"`
	Events          int       `yaml:"events"`
	Skipped         int       `yaml:"skipped"`
	Bins            []binDump `yaml:"bins"`
}

type binDump struct {
	StartUTC string  `yaml:"start_utc"`
	Level    float64 `yaml:"level"`
}

func dumpModel(ctx context.Context, w io.Writer, source transitionSource, model *logic.DailyCycleModel, now time.Time) error {
	events, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	stats := model.Train(events, epochSeconds(now))

	dump := modelDump{
		WindowDays:      model.WindowDays(),
		IntervalMinutes: model.IntervalMinutes(),
		TrainedAt:       now.UTC().Format(time.RFC3339),
		Events:          stats.Events,
		Skipped:         stats.Skipped,
	}
	for i, level := range model.Bins() {
		m := i * model.IntervalMinutes()
		dump.Bins = append(dump.Bins, binDump{
			StartUTC: fmt.Sprintf("%02d:%02d", m/60, m%60),
			Level:    level,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return enc.Close()
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func stateString(v, threshold float64) string {
	if v >= threshold {
		return "ON"
	}
	return "OFF"
}
