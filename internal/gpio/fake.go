package gpio

import "errors"

// FakeReader is a test double that returns scripted switch samples.
type FakeReader struct {
	// Samples contains scripted values to return.
	// Each call to Read() consumes the next sample.
	Samples []float64

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []float64) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (float64, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}

	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeOutput records every level written to it.
type FakeOutput struct {
	// Levels contains every duty cycle passed to SetLevel, in order.
	Levels []float64

	// SetError, if set, will be returned by SetLevel.
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeOutput creates an empty FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// SetLevel records the duty cycle.
func (f *FakeOutput) SetLevel(duty float64) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Levels = append(f.Levels, duty)
	return nil
}

// Last returns the most recent level, or 0 if none was set.
func (f *FakeOutput) Last() float64 {
	if len(f.Levels) == 0 {
		return 0
	}
	return f.Levels[len(f.Levels)-1]
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.Closed = true
	return nil
}
