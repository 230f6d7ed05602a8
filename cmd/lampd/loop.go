package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/lampd/internal/backup"
	"github.com/sweeney/lampd/internal/config"
	"github.com/sweeney/lampd/internal/gpio"
	"github.com/sweeney/lampd/internal/logic"
	"github.com/sweeney/lampd/internal/metrics"
	"github.com/sweeney/lampd/internal/mqtt"
	"github.com/sweeney/lampd/internal/statelog"
	"github.com/sweeney/lampd/internal/status"
)

// transitionSource supplies the history the model is trained on.
type transitionSource interface {
	Load(ctx context.Context) ([]logic.Transition, error)
}

// transitionWriter is the durable state log.
type transitionWriter interface {
	Append(t logic.Transition) error
}

// historyWriter is the optional queryable mirror of the state log.
type historyWriter interface {
	Append(ctx context.Context, t logic.Transition) error
}

// deps holds everything the control loop touches.
type deps struct {
	cfg        *config.Config
	reader     gpio.Reader
	led        *gpio.LED
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // nil when mqtt is disabled
	tracker    *status.Tracker
	model      *logic.DailyCycleModel
	source     transitionSource
	stateLog   transitionWriter
	history    historyWriter // nil when disabled
	backup     *backup.Job
	logger     *zap.Logger
}

// loopFailure carries the stack captured where the loop gave up.
type loopFailure struct {
	err   error
	stack []byte
}

func (f *loopFailure) Error() string { return f.err.Error() }
func (f *loopFailure) Unwrap() error { return f.err }

func fail(err error) error {
	return &loopFailure{err: err, stack: debug.Stack()}
}

func stackOf(err error) []byte {
	var f *loopFailure
	if errors.As(err, &f) {
		return f.stack
	}
	return nil
}

// runLoop is the core polling loop. It reads the switch on every tick,
// records debounced transitions and drives the LED. It returns nil on a
// signal and an error when the loop cannot continue. Panics are returned
// as errors so the caller can enter safe mode.
func runLoop(ctx context.Context, d deps, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &loopFailure{err: fmt.Errorf("panic: %v", r), stack: debug.Stack()}
		}
	}()

	detector, err := logic.NewDetector(d.cfg.Debounce.Capacity, d.cfg.Debounce.Threshold, now())
	if err != nil {
		return fail(fmt.Errorf("init detector: %w", err))
	}

	mirror := d.cfg.Loop.Mode == config.ModeMirror
	var (
		readErrors  int
		consecutive int
		lastTrain   time.Time
	)

	for {
		select {
		case s := <-sig:
			reason := signalName(s)
			d.logger.Info("shutting down", zap.String("signal", reason))
			updateTracker(d, detector)
			publishStatus(d, now(), mqtt.EventShutdown, reason)
			return nil

		case <-tick:
			t := now()

			raw, rerr := d.reader.Read()
			if rerr == nil {
				var event *logic.Event
				event, rerr = detector.Process(logic.Input{Value: raw, Time: t})
				if rerr == nil && event != nil {
					if err := handleEvent(ctx, d, *event, mirror); err != nil {
						return err
					}
				}
			}
			if rerr != nil {
				readErrors++
				consecutive++
				metrics.IncReadError()
				d.tracker.SetReadErrors(readErrors)
				d.logger.Warn("switch read error", zap.Error(rerr), zap.Int("consecutive", consecutive))
				if consecutive >= d.cfg.Loop.MaxReadErrors {
					return fail(fmt.Errorf("read switch: %d consecutive failures: %w", consecutive, rerr))
				}
				continue
			}
			consecutive = 0
			if avg, err := detector.Average(); err == nil {
				metrics.ObserveSample(avg)
			}

			if !mirror && trainDue(lastTrain, t, d.cfg.Model.TrainInterval) {
				lastTrain = t
				train(ctx, d, t)
			}

			duty := raw * 100
			if !mirror {
				duty = d.model.Predict(epochSeconds(t))
			}
			changed, err := d.led.Set(duty)
			if err != nil {
				return fail(err)
			}
			if changed {
				metrics.SetLEDDuty(d.led.Level())
				d.tracker.SetDuty(d.led.Level())
			}

			if d.backup.Due(t) {
				runBackup(ctx, d, t)
			}

			updateTracker(d, detector)

			if hb := detector.CheckHeartbeat(t, d.cfg.Loop.Heartbeat); hb != nil {
				d.logger.Info("heartbeat",
					zap.Duration("uptime", hb.Uptime),
					zap.Int("on", hb.Counts.On),
					zap.Int("off", hb.Counts.Off),
				)
				if net := readNetworkInfo(); net != nil {
					d.tracker.SetNetwork(net)
				}
				publishStatus(d, hb.Timestamp, mqtt.EventHeartbeat, "")
			}
		}
	}
}

// handleEvent records one detector event. Only a state log failure is
// fatal; mirror mode just logs.
func handleEvent(ctx context.Context, d deps, e logic.Event, mirror bool) error {
	d.logger.Info("lamp transition",
		zap.String("event", string(e.Type)),
		zap.String("state", string(e.State)),
		zap.Float64("average", e.Average),
		zap.Bool("baseline", e.Baseline),
	)
	if !e.Baseline {
		metrics.ObserveTransition(string(e.State))
	}
	if mirror {
		return nil
	}

	tr := logic.TransitionFromEvent(e)
	tr.Label = statelog.HumanTime(tr.Timestamp, time.Local)
	if err := d.stateLog.Append(tr); err != nil {
		return fail(fmt.Errorf("append state log: %w", err))
	}
	if d.history != nil {
		if err := d.history.Append(ctx, tr); err != nil {
			d.logger.Warn("history append failed", zap.Error(err))
		}
	}
	if err := d.publisher.Publish(e); err != nil {
		metrics.IncPublishError()
		d.logger.Warn("mqtt publish error", zap.Error(err))
	}
	return nil
}

func trainDue(last, now time.Time, interval time.Duration) bool {
	if last.IsZero() {
		return true
	}
	return interval > 0 && now.Sub(last) >= interval
}

// train retrains the model from the configured source. A failed load keeps
// the previous model.
func train(ctx context.Context, d deps, t time.Time) {
	started := time.Now()
	events, err := d.source.Load(ctx)
	if err != nil {
		metrics.ObserveTraining(time.Since(started), metrics.OutcomeError, 0)
		d.tracker.SetTraining(status.TrainingInfo{At: t, Err: err.Error()})
		d.logger.Error("training failed", zap.Error(err))
		return
	}
	stats := d.model.Train(events, epochSeconds(t))
	elapsed := time.Since(started)
	metrics.ObserveTraining(elapsed, metrics.OutcomeSuccess, stats.Events)
	d.tracker.SetTraining(status.TrainingInfo{At: t, Stats: stats, Elapsed: elapsed})
	d.logger.Info("model trained",
		zap.Int("events", stats.Events),
		zap.Int("skipped", stats.Skipped),
		zap.Int("samples", stats.Samples),
		zap.Duration("elapsed", elapsed),
	)
}

func runBackup(ctx context.Context, d deps, t time.Time) {
	remote, err := d.backup.Run(ctx, t)
	info := status.BackupInfo{At: t, Remote: remote}
	if err != nil {
		info.Err = err.Error()
		metrics.ObserveBackup(metrics.OutcomeError)
		d.logger.Error("backup failed", zap.Error(err))
	} else {
		metrics.ObserveBackup(metrics.OutcomeSuccess)
		d.logger.Info("backup uploaded", zap.String("remote", remote))
	}
	d.tracker.SetBackup(info)
}

func updateTracker(d deps, detector *logic.Detector) {
	avg, _ := detector.Average()
	d.tracker.Update(detector.CurrentState(), avg, detector.IsBaselined(), detector.EventCountsSnapshot())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

// publishStatus sends a system event carrying the full status snapshot.
// Heartbeats are not retained.
func publishStatus(d deps, ts time.Time, event, reason string) {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	se := mqtt.SystemEvent{
		Timestamp:  ts,
		Event:      event,
		Reason:     reason,
		Retained:   event != mqtt.EventHeartbeat,
		RawPayload: status.FormatStatusEvent(d.tracker.Snapshot(), event, reason),
	}
	if err := d.publisher.PublishSystem(se); err != nil {
		metrics.IncPublishError()
		d.logger.Warn("mqtt system publish error", zap.String("event", event), zap.Error(err))
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return s.String()
}

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
