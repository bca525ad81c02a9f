package session

import (
	"context"
	"errors"
	"time"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("session loop stopped")

// Loop drives a Session at a fixed frame rate and serialises commands onto
// the same goroutine, so ticks and commands never interleave.
type Loop struct {
	s        *Session
	interval time.Duration
	cmds     chan command
	done     chan struct{}
}

type command struct {
	fn    func(*Session) error
	reply chan error
}

// NewLoop creates a loop ticking s every interval.
func NewLoop(s *Session, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Loop{
		s:        s,
		interval: interval,
		cmds:     make(chan command),
		done:     make(chan struct{}),
	}
}

// Session returns the driven session. Only its broadcasters may be used
// from other goroutines.
func (l *Loop) Session() *Session { return l.s }

// Run ticks until ctx is done, then releases the capture device.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.s.Close()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.s.logger.Info("session loop stopped")
			return
		case now := <-ticker.C:
			l.s.Tick(now)
		case cmd := <-l.cmds:
			err := cmd.fn(l.s)
			l.s.publish()
			cmd.reply <- err
		}
	}
}

// Do runs fn on the loop goroutine and returns its error.
func (l *Loop) Do(ctx context.Context, fn func(*Session) error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case l.cmds <- cmd:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// accepted commands always complete within the frame
	return <-cmd.reply
}

// Status returns a snapshot taken on the loop goroutine.
func (l *Loop) Status(ctx context.Context) (Status, error) {
	var st Status
	err := l.Do(ctx, func(s *Session) error {
		st = s.Status()
		return nil
	})
	return st, err
}
