package message

import (
	"errors"
	"math"
	"testing"
)

func TestSequenceCounter_Next(t *testing.T) {
	c := NewSequenceCounter()
	for want := InitialSequence; want < InitialSequence+5; want++ {
		got, err := c.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if got != want {
			t.Errorf("Next() = %d, want %d", got, want)
		}
	}
	if c.Current() != InitialSequence+5 {
		t.Errorf("Current() = %d", c.Current())
	}
}

func TestSequenceCounter_Expect(t *testing.T) {
	tests := []struct {
		name    string
		current uint64
		seq     uint64
		wantErr error
	}{
		{"match", 1, 1, nil},
		{"replay", 5, 4, ErrSequenceMismatch},
		{"skip ahead", 5, 6, ErrSequenceMismatch},
		{"zero", 1, 0, ErrSequenceMismatch},
		{"exhausted", math.MaxUint64, math.MaxUint64, ErrCounterExhausted},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewSequenceCounterWithValue(tc.current)
			if err := c.Expect(tc.seq); !errors.Is(err, tc.wantErr) {
				t.Errorf("Expect(%d) = %v, want %v", tc.seq, err, tc.wantErr)
			}
			if c.Current() != tc.current {
				t.Error("Expect modified the counter")
			}
		})
	}
}

func TestSequenceCounter_Exhaustion(t *testing.T) {
	c := NewSequenceCounterWithValue(math.MaxUint64 - 2)
	for i := 0; i < 2; i++ {
		if err := c.Advance(); err != nil {
			t.Fatalf("Advance %d failed: %v", i, err)
		}
	}
	if !c.Exhausted() {
		t.Fatal("counter should be exhausted")
	}
	if _, err := c.Next(); !errors.Is(err, ErrCounterExhausted) {
		t.Errorf("expected ErrCounterExhausted, got %v", err)
	}
	if err := c.Advance(); !errors.Is(err, ErrCounterExhausted) {
		t.Errorf("expected ErrCounterExhausted, got %v", err)
	}
	if c.Current() != math.MaxUint64 {
		t.Error("exhausted counter wrapped")
	}
}
