// Package gpio provides switch input and LED output with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake and simulated implementations allow running without hardware.
package gpio

import "math"

// Reader reads the raw switch input.
type Reader interface {
	// Read returns the current switch level, 1.0 when the line is active
	// and 0.0 when it is not.
	Read() (float64, error)

	// Close releases GPIO resources.
	Close() error
}

// Output drives the lamp LED.
type Output interface {
	// SetLevel sets the output duty cycle in percent (0-100).
	SetLevel(duty float64) error

	// Close turns the output off and releases GPIO resources.
	Close() error
}

// Pin and PWM defaults (BCM numbering).
const (
	DefaultSwitchPin = 23
	DefaultLEDPin    = 17
	DefaultLEDFreq   = 100 // Hz
	DefaultChip      = "gpiochip0"
)

// clampDuty limits a duty cycle to [0,100].
func clampDuty(duty float64) float64 {
	switch {
	case math.IsNaN(duty), duty < 0:
		return 0
	case duty > 100:
		return 100
	}
	return duty
}
