//go:build !linux

package gpio

import "errors"

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chipName string, pin int) (*RealReader, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (float64, error) {
	return 0, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// RealPWM is not available on non-Linux platforms.
type RealPWM struct{}

// NewRealPWM returns an error on non-Linux platforms.
func NewRealPWM(chipName string, pin int, freq float64) (*RealPWM, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetLevel is not implemented on non-Linux platforms.
func (p *RealPWM) SetLevel(duty float64) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (p *RealPWM) Close() error {
	return nil
}
