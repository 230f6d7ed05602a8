package gpio

import "math/rand"

// SimReader produces uniformly random samples in [0,1), standing in for the
// switch when the daemon runs off the lamp.
type SimReader struct {
	rng *rand.Rand
}

// NewSimReader creates a simulated reader seeded with seed.
func NewSimReader(seed int64) *SimReader {
	return &SimReader{rng: rand.New(rand.NewSource(seed))}
}

// Read returns the next random sample.
func (s *SimReader) Read() (float64, error) {
	return s.rng.Float64(), nil
}

// Close is a no-op.
func (s *SimReader) Close() error { return nil }

// NopOutput discards all levels.
type NopOutput struct{}

// SetLevel does nothing.
func (NopOutput) SetLevel(float64) error { return nil }

// Close does nothing.
func (NopOutput) Close() error { return nil }
