package message

import "math"

// InitialSequence is the first sequence number used in each direction.
const InitialSequence uint64 = 1

// SequenceCounter tracks one direction's frame sequence number.
//
// The counter is strictly monotonic. On the sending side Next hands out the
// value for the next frame; on the receiving side Expect checks an incoming
// value and Advance moves past it. The value math.MaxUint64 is never handed
// out, so a counter that reaches it reports ErrCounterExhausted forever.
//
// SequenceCounter is not safe for concurrent use; it lives inside a session
// that serializes access.
type SequenceCounter struct {
	value uint64
}

// NewSequenceCounter returns a counter starting at InitialSequence.
func NewSequenceCounter() *SequenceCounter {
	return &SequenceCounter{value: InitialSequence}
}

// NewSequenceCounterWithValue returns a counter starting at value.
// Used by tests that exercise exhaustion without sending 2^64 frames.
func NewSequenceCounterWithValue(value uint64) *SequenceCounter {
	return &SequenceCounter{value: value}
}

// Current returns the next value to be sent or expected.
func (c *SequenceCounter) Current() uint64 {
	return c.value
}

// Exhausted reports whether the counter has no values left.
func (c *SequenceCounter) Exhausted() bool {
	return c.value == math.MaxUint64
}

// Next returns the current value and advances the counter.
func (c *SequenceCounter) Next() (uint64, error) {
	if c.Exhausted() {
		return 0, ErrCounterExhausted
	}
	v := c.value
	c.value++
	return v, nil
}

// Expect returns ErrSequenceMismatch unless seq is exactly the current value.
func (c *SequenceCounter) Expect(seq uint64) error {
	if c.Exhausted() {
		return ErrCounterExhausted
	}
	if seq != c.value {
		return ErrSequenceMismatch
	}
	return nil
}

// Advance moves the counter past the current value.
func (c *SequenceCounter) Advance() error {
	_, err := c.Next()
	return err
}
