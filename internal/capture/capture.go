// Package capture defines the microphone capability the loudness monitor
// consumes and the backends that provide it.
//
// A Device hands out at most one Stream at a time. A Stream must be closed to
// give the device back; Close is idempotent.
package capture

import (
	"context"
	"sync"
)

// Stream is an open capture session.
type Stream interface {
	// Window copies the most recent samples (mono, [-1,1]) into dst and
	// returns how many were copied. It returns an error wrapping
	// ErrDeviceLost once the underlying stream has gone away.
	Window(dst []float32) (int, error)
	Close() error
}

// Device acquires capture streams.
type Device interface {
	Name() string
	// Acquire opens the device. It may block until the device is ready or
	// ctx is done; there is no built-in timeout.
	Acquire(ctx context.Context) (Stream, error)
}

// exclusive guards a device so only one stream is open at a time.
type exclusive struct {
	mu   sync.Mutex
	held bool
}

func (e *exclusive) claim() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.held {
		return false
	}
	e.held = true
	return true
}

func (e *exclusive) release() {
	e.mu.Lock()
	e.held = false
	e.mu.Unlock()
}

// None is a device that is never available.
type None struct{}

func (None) Name() string { return "none" }

func (None) Acquire(context.Context) (Stream, error) {
	return nil, Unavailable("none", nil)
}
