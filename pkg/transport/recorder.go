package transport

import "sync"

// Recorder captures every chunk written through a pipe. Install it with
// Pipe.SetInterceptor(r.Intercept).
type Recorder struct {
	mu     sync.Mutex
	chunks [2][][]byte
	next   Interceptor
}

// NewRecorder creates a recorder that forwards to next after capturing.
// A nil next delivers chunks unchanged.
func NewRecorder(next Interceptor) *Recorder {
	return &Recorder{next: next}
}

// Intercept records chunk and delivers it.
func (r *Recorder) Intercept(from int, chunk []byte) [][]byte {
	r.mu.Lock()
	r.chunks[from&1] = append(r.chunks[from&1], append([]byte(nil), chunk...))
	r.mu.Unlock()

	if r.next != nil {
		return r.next(from, chunk)
	}
	return [][]byte{chunk}
}

// Chunks returns the chunks written by endpoint from, in order.
func (r *Recorder) Chunks(from int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.chunks[from&1]))
	copy(out, r.chunks[from&1])
	return out
}

// Bytes returns everything endpoint from wrote, concatenated.
func (r *Recorder) Bytes(from int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, c := range r.chunks[from&1] {
		out = append(out, c...)
	}
	return out
}
