package gpio

import "fmt"

// LED forwards duty cycles to an Output, skipping writes that would not
// change the current level.
type LED struct {
	out   Output
	level float64
	set   bool
}

// NewLED wraps out. The LED starts at level 0.
func NewLED(out Output) *LED {
	return &LED{out: out}
}

// Set drives the LED to duty percent, clamped to [0,100]. It returns
// whether the output was written.
func (l *LED) Set(duty float64) (bool, error) {
	duty = clampDuty(duty)
	if l.set && duty == l.level {
		return false, nil
	}
	if err := l.out.SetLevel(duty); err != nil {
		return false, fmt.Errorf("set led level %.1f: %w", duty, err)
	}
	l.level = duty
	l.set = true
	return true, nil
}

// Level returns the last level written.
func (l *LED) Level() float64 {
	return l.level
}

// Close closes the underlying output.
func (l *LED) Close() error {
	return l.out.Close()
}
