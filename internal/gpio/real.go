//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the switch from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealReader requests the switch pin on the named chip as an input.
func NewRealReader(chipName string, pin int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Pull-down so a floating switch reads as off.
	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request switch pin %d: %w", pin, err)
	}

	return &RealReader{chip: chip, line: line}, nil
}

// Read returns 1.0 when the switch line is high, 0.0 otherwise.
func (r *RealReader) Read() (float64, error) {
	v, err := r.line.Value()
	if err != nil {
		return 0, fmt.Errorf("read switch pin: %w", err)
	}
	return float64(v), nil
}

// Close releases GPIO resources.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// before closing to leave a clean state for shutdown/reboot.
func (r *RealReader) Close() error {
	var errs []error
	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure switch pin: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close switch pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RealPWM drives the LED pin with software PWM. The Pi's hardware PWM
// channels are not exposed through the character device, so a goroutine
// toggles the line at the configured frequency.
type RealPWM struct {
	chip   *gpiocdev.Chip
	line   *gpiocdev.Line
	period time.Duration

	duty atomic.Uint64 // math.Float64bits of the duty cycle
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewRealPWM requests the LED pin as an output, initially low, and starts
// the PWM loop at freq Hz with a 0% duty cycle.
func NewRealPWM(chipName string, pin int, freq float64) (*RealPWM, error) {
	if freq <= 0 {
		return nil, fmt.Errorf("pwm frequency must be positive, got %v", freq)
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request led pin %d: %w", pin, err)
	}

	p := &RealPWM{
		chip:   chip,
		line:   line,
		period: time.Duration(float64(time.Second) / freq),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p, nil
}

// SetLevel sets the duty cycle in percent; values are clamped to [0,100].
func (p *RealPWM) SetLevel(duty float64) error {
	p.duty.Store(math.Float64bits(clampDuty(duty)))
	return nil
}

func (p *RealPWM) run() {
	defer p.wg.Done()
	timer := time.NewTimer(p.period)
	defer timer.Stop()

	wait := func(d time.Duration) bool {
		timer.Reset(d)
		select {
		case <-p.done:
			return false
		case <-timer.C:
			return true
		}
	}

	for {
		duty := math.Float64frombits(p.duty.Load())
		high := time.Duration(float64(p.period) * duty / 100)

		if high > 0 {
			p.line.SetValue(1)
			if !wait(high) {
				return
			}
		}
		if high < p.period {
			p.line.SetValue(0)
			if !wait(p.period - high) {
				return
			}
		}
	}
}

// Close stops the PWM loop, drives the pin low and releases it.
func (p *RealPWM) Close() error {
	var errs []error
	p.once.Do(func() {
		close(p.done)
		p.wg.Wait()

		if err := p.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear led pin: %w", err))
		}
		if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure led pin: %w", err))
		}
		if err := p.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close led pin: %w", err))
		}
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	})
	return errors.Join(errs...)
}
