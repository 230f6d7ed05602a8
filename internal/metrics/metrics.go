// Package metrics exposes lampd Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels operations that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels operations that failed.
	OutcomeError = "error"
	// OutcomeThrottled labels alerts dropped by the rate limiter.
	OutcomeThrottled = "throttled"
)

const namespace = "lampd"

var (
	samplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Raw switch samples accepted by the debouncer.",
		},
	)

	readErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Failed or rejected switch reads.",
		},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Debounced lamp transitions, partitioned by new state.",
		},
		[]string{"state"},
	)

	windowAverage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_average",
			Help:      "Mean of the debounce window.",
		},
	)

	ledDuty = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "led_duty_percent",
			Help:      "Duty cycle currently driven on the LED.",
		},
	)

	trainingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trainings_total",
			Help:      "Model trainings, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	trainingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_seconds",
			Help:      "Model training latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	trainingEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_events",
			Help:      "Transitions used by the most recent training.",
		},
	)

	backupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "State log uploads, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert emails, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	publishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "MQTT publish failures.",
		},
	)
)

// Register attaches lampd collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		samplesTotal,
		readErrorsTotal,
		transitionsTotal,
		windowAverage,
		ledDuty,
		trainingsTotal,
		trainingDurationSeconds,
		trainingEvents,
		backupsTotal,
		alertsTotal,
		publishErrorsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveSample records an accepted sample and the resulting window mean.
func ObserveSample(average float64) {
	samplesTotal.Inc()
	windowAverage.Set(average)
}

// IncReadError counts a failed or rejected read.
func IncReadError() {
	readErrorsTotal.Inc()
}

// ObserveTransition counts a transition into state.
func ObserveTransition(state string) {
	transitionsTotal.WithLabelValues(state).Inc()
}

// SetLEDDuty records the duty cycle driven on the LED.
func SetLEDDuty(duty float64) {
	ledDuty.Set(duty)
}

// ObserveTraining records a training duration, outcome and event count.
func ObserveTraining(duration time.Duration, outcome string, events int) {
	label := normalize(outcome)
	trainingsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	trainingDurationSeconds.Observe(duration.Seconds())
	if label == OutcomeSuccess {
		trainingEvents.Set(float64(events))
	}
}

// ObserveBackup counts a backup attempt.
func ObserveBackup(outcome string) {
	backupsTotal.WithLabelValues(normalize(outcome)).Inc()
}

// ObserveAlert counts an alert attempt.
func ObserveAlert(outcome string) {
	label := outcome
	if label != OutcomeThrottled {
		label = normalize(label)
	}
	alertsTotal.WithLabelValues(label).Inc()
}

// IncPublishError counts a failed MQTT publish.
func IncPublishError() {
	publishErrorsTotal.Inc()
}

func normalize(outcome string) string {
	if outcome != OutcomeError {
		return OutcomeSuccess
	}
	return OutcomeError
}
