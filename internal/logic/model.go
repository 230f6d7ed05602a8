package logic

import (
	"math"
	"sync"
	"sync/atomic"
)

const (
	minutesPerDay = 24 * 60
	secondsPerDay = 24 * 60 * 60
)

// DailyCycleModel predicts the lamp level for a time of day from the
// average historical level in that time-of-day bucket over a trailing
// window of days. The model is periodic with a period of one day.
//
// Predict and Bins may be called concurrently with Train: Train builds a
// new bucket array and swaps it in once complete.
type DailyCycleModel struct {
	windowDays      int
	intervalMinutes int
	intervalSeconds int64
	binsPerDay      int

	trainMu sync.Mutex
	bins    atomic.Pointer[[]float64]
}

// TrainStats summarises a training run.
type TrainStats struct {
	// Events is the number of events inside the lookback window.
	Events int
	// Skipped counts events dropped for a non-finite timestamp or value.
	Skipped int
	// Samples is the number of bucket slots filled by the backfill walk.
	Samples int
}

// NewDailyCycleModel creates an untrained model looking back windowDays
// days with buckets intervalMinutes wide.
func NewDailyCycleModel(windowDays, intervalMinutes int) (*DailyCycleModel, error) {
	if windowDays <= 0 {
		return nil, ErrInvalidWindow
	}
	if intervalMinutes <= 0 || minutesPerDay%intervalMinutes != 0 {
		return nil, ErrInvalidInterval
	}
	return &DailyCycleModel{
		windowDays:      windowDays,
		intervalMinutes: intervalMinutes,
		intervalSeconds: int64(intervalMinutes) * 60,
		binsPerDay:      minutesPerDay / intervalMinutes,
	}, nil
}

// Train rebuilds the model from events, which must be sorted by timestamp.
// Each bucket receives the level that was active at every interval step
// between now-windowDays and now; the level before the first event is 0
// and the last event's level is carried forward to now. Out-of-order
// events are not re-sorted: the walk simply does not move backwards, so
// their levels only affect the carried value. The walk never passes now,
// so events stamped in the future only change the carried level.
//
// A non-finite now leaves the current model in place.
func (m *DailyCycleModel) Train(events []Transition, now float64) TrainStats {
	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	var stats TrainStats
	if !finite(now) {
		return stats
	}
	cutoff := now - float64(m.windowDays)*secondsPerDay

	sums := make([]float64, m.binsPerDay)
	counts := make([]int, m.binsPerDay)
	fill := func(cursor int64, level float64) {
		i := m.bucket(cursor)
		sums[i] += level
		counts[i]++
		stats.Samples++
	}

	cursor := int64(cutoff)
	level := 0.0
	for _, e := range events {
		if !finite(e.Timestamp) || !finite(e.Value) {
			stats.Skipped++
			continue
		}
		if e.Timestamp <= cutoff {
			continue
		}
		stats.Events++

		for e.Timestamp > float64(cursor) && float64(cursor) < now {
			fill(cursor, level)
			cursor += m.intervalSeconds
		}
		// A bucket that changes state more than once keeps the last value.
		level = e.Value
	}

	for float64(cursor) < now {
		fill(cursor, level)
		cursor += m.intervalSeconds
	}

	averages := make([]float64, m.binsPerDay)
	for i := range averages {
		if counts[i] > 0 {
			averages[i] = sums[i] / float64(counts[i])
		}
	}
	m.bins.Store(&averages)

	return stats
}

// Predict returns the expected lamp level at ts as a duty cycle in [0,100].
// An untrained model predicts 0.
func (m *DailyCycleModel) Predict(ts float64) float64 {
	bins := m.bins.Load()
	if bins == nil || !finite(ts) {
		return 0
	}
	return (*bins)[m.bucket(int64(ts))] * 100
}

// Bins returns a copy of the bucket averages (0-1), or nil if untrained.
func (m *DailyCycleModel) Bins() []float64 {
	bins := m.bins.Load()
	if bins == nil {
		return nil
	}
	out := make([]float64, len(*bins))
	copy(out, *bins)
	return out
}

// Trained reports whether Train has completed at least once.
func (m *DailyCycleModel) Trained() bool {
	return m.bins.Load() != nil
}

// BinsPerDay returns the number of buckets in a day.
func (m *DailyCycleModel) BinsPerDay() int {
	return m.binsPerDay
}

// IntervalMinutes returns the bucket width.
func (m *DailyCycleModel) IntervalMinutes() int {
	return m.intervalMinutes
}

// WindowDays returns the lookback horizon.
func (m *DailyCycleModel) WindowDays() int {
	return m.windowDays
}

// bucket maps an epoch second to its time-of-day bucket using floor
// division, so instants before the epoch still land in [0, binsPerDay).
func (m *DailyCycleModel) bucket(ts int64) int {
	slot := ts / m.intervalSeconds
	if ts%m.intervalSeconds < 0 {
		slot--
	}
	i := int(slot % int64(m.binsPerDay))
	if i < 0 {
		i += m.binsPerDay
	}
	return i
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
