package logic

import "math"

// Debouncer smooths raw switch samples over a trailing window of fixed
// capacity. The state is only recomputed once the window is full; partial
// windows never change it.
//
// A Debouncer is not safe for concurrent use. It is owned by the polling
// loop and must only be updated from that goroutine.
type Debouncer struct {
	capacity  int
	threshold float64

	buf  []float64
	head int // next write position
	size int

	state State
}

// NewDebouncer creates a debouncer with the given window capacity and the
// mean level at or above which the state is ON.
func NewDebouncer(capacity int, threshold float64) (*Debouncer, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Debouncer{
		capacity:  capacity,
		threshold: threshold,
		buf:       make([]float64, capacity),
		state:     StateOff,
	}, nil
}

// Update appends a sample, evicting the oldest one when the window is full,
// and recomputes the state once the window holds capacity samples.
// Non-finite samples are rejected and leave the debouncer untouched.
func (d *Debouncer) Update(sample float64) error {
	if math.IsNaN(sample) || math.IsInf(sample, 0) {
		return ErrNonFinite
	}

	d.buf[d.head] = sample
	d.head = (d.head + 1) % d.capacity
	if d.size < d.capacity {
		d.size++
	}

	if d.size < d.capacity {
		return nil
	}

	if d.mean() >= d.threshold {
		d.state = StateOn
	} else {
		d.state = StateOff
	}
	return nil
}

// Average returns the mean of the samples currently in the window.
func (d *Debouncer) Average() (float64, error) {
	if d.size == 0 {
		return 0, ErrEmptyWindow
	}
	return d.mean(), nil
}

// State returns the last computed state, OFF if the window never filled.
func (d *Debouncer) State() State {
	return d.state
}

// Len returns the number of samples in the window.
func (d *Debouncer) Len() int {
	return d.size
}

// Full reports whether the window holds capacity samples.
func (d *Debouncer) Full() bool {
	return d.size == d.capacity
}

// Capacity returns the configured window size.
func (d *Debouncer) Capacity() int {
	return d.capacity
}

// Threshold returns the configured ON threshold.
func (d *Debouncer) Threshold() float64 {
	return d.threshold
}

// mean sums the window in insertion order so results do not depend on
// where the ring head happens to sit.
func (d *Debouncer) mean() float64 {
	start := (d.head - d.size + d.capacity) % d.capacity
	sum := 0.0
	for i := 0; i < d.size; i++ {
		sum += d.buf[(start+i)%d.capacity]
	}
	return sum / float64(d.size)
}
