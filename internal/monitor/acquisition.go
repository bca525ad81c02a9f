package monitor

import (
	"context"
	"sync"

	"github.com/satindergrewal/cueline/internal/capture"
)

// acquisition is an in-flight capture.Device.Acquire. Its result is picked
// up by poll on a later tick. A stream that arrives after abandon is closed
// on the spot so the device is never left held.
type acquisition struct {
	cancel context.CancelFunc

	mu        sync.Mutex
	done      bool
	stream    capture.Stream
	err       error
	abandoned bool
}

func acquire(dev capture.Device) *acquisition {
	ctx, cancel := context.WithCancel(context.Background())
	a := &acquisition{cancel: cancel}
	go func() {
		s, err := dev.Acquire(ctx)

		a.mu.Lock()
		if a.abandoned {
			a.mu.Unlock()
			if s != nil {
				s.Close()
			}
			return
		}
		a.done, a.stream, a.err = true, s, err
		a.mu.Unlock()
	}()
	return a
}

// poll reports whether Acquire has returned and, if so, its result.
// Ownership of the stream passes to the caller.
func (a *acquisition) poll() (capture.Stream, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.done {
		return nil, false, nil
	}
	s := a.stream
	a.stream = nil
	a.cancel()
	return s, true, a.err
}

// abandon cancels the acquisition and releases anything it produced that
// has not been claimed by poll.
func (a *acquisition) abandon() {
	a.cancel()

	a.mu.Lock()
	a.abandoned = true
	s := a.stream
	a.stream = nil
	a.mu.Unlock()

	if s != nil {
		s.Close()
	}
}
