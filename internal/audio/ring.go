package audio

import "sync"

// Ring keeps the most recent samples written by a capture callback so the
// analysis tick can copy the latest window without blocking the producer.
type Ring struct {
	mu      sync.Mutex
	buf     []float32
	pos     int
	written uint64
}

// NewRing creates a ring holding up to size samples.
func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{buf: make([]float32, size)}
}

// Write appends samples, overwriting the oldest.
func (r *Ring) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(samples) > len(r.buf) {
		samples = samples[len(samples)-len(r.buf):]
	}
	for _, s := range samples {
		r.buf[r.pos] = s
		r.pos = (r.pos + 1) % len(r.buf)
	}
	r.written += uint64(len(samples))
}

// Latest copies the newest min(len(dst), available) samples into dst in
// chronological order and returns how many were copied.
func (r *Ring) Latest(dst []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(dst)
	if n > len(r.buf) {
		n = len(r.buf)
	}
	if uint64(n) > r.written {
		n = int(r.written)
	}
	start := (r.pos - n + len(r.buf)) % len(r.buf)
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(start+i)%len(r.buf)]
	}
	return n
}
