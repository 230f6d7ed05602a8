package gpio

import "testing"

func TestSimReaderRange(t *testing.T) {
	r := NewSimReader(1)
	for i := 0; i < 1000; i++ {
		v, err := r.Read()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v < 0 || v >= 1 {
			t.Fatalf("sample %d out of range: %v", i, v)
		}
	}
}

func TestSimReaderDeterministic(t *testing.T) {
	a, b := NewSimReader(7), NewSimReader(7)
	for i := 0; i < 10; i++ {
		va, _ := a.Read()
		vb, _ := b.Read()
		if va != vb {
			t.Fatalf("sample %d: same seed produced %v and %v", i, va, vb)
		}
	}
}

func TestNopOutput(t *testing.T) {
	var out Output = NopOutput{}
	if err := out.SetLevel(50); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
