package api

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/satindergrewal/cueline/internal/session"
	"github.com/satindergrewal/cueline/internal/stream"
)

// SSE event names.
const (
	eventStatus   = "status"
	eventLoudness = "loudness"
)

// newLevelLimiter throttles loudness events for one subscriber.
func (s *Server) newLevelLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(s.eventRate), 1)
}

// progressCoalescer passes state events straight through and thins progress
// events to the subscriber rate. The newest progress event held back is
// delivered once the rate allows, unless a state event supersedes it.
type progressCoalescer struct {
	limiter *rate.Limiter
	every   time.Duration
	held    *session.Event
	timer   *time.Timer
}

func (s *Server) newProgressCoalescer() *progressCoalescer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &progressCoalescer{
		limiter: rate.NewLimiter(rate.Limit(s.eventRate), 1),
		every:   time.Duration(float64(time.Second) / s.eventRate),
		timer:   t,
	}
}

// C fires when a held progress event may be ready.
func (c *progressCoalescer) C() <-chan time.Time { return c.timer.C }

// Offer returns the event to send now, if any.
func (c *progressCoalescer) Offer(ev session.Event) (session.Event, bool) {
	if ev.Kind != session.KindProgress || c.limiter.Allow() {
		c.held = nil
		return ev, true
	}
	if c.held == nil {
		c.timer.Reset(c.every)
	}
	c.held = &ev
	return session.Event{}, false
}

// Flush returns the held event once the rate allows it.
func (c *progressCoalescer) Flush() (session.Event, bool) {
	if c.held == nil {
		return session.Event{}, false
	}
	if !c.limiter.Allow() {
		c.timer.Reset(c.every)
		return session.Event{}, false
	}
	ev := *c.held
	c.held = nil
	return ev, true
}

func (c *progressCoalescer) Stop() { c.timer.Stop() }

// handleEvents streams state changes, coalesced progress and throttled
// loudness samples.
// The first event is the current status.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if ctx.Err() != nil {
		return
	}

	ss := s.loop.Session()
	events := ss.Events().Subscribe()
	defer ss.Events().Unsubscribe(events)
	samples := ss.Samples().Subscribe()
	defer ss.Samples().Unsubscribe(samples)

	st, err := s.loop.Status(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ew, err := stream.NewEventWriter(w)
	if err != nil {
		s.logger.Error("event stream", "error", err)
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	log := s.logger.With("subscriber", r.RemoteAddr)
	log.Info("event subscriber connected")
	defer log.Info("event subscriber disconnected")

	if err := ew.Send(eventStatus, st); err != nil {
		return
	}

	limiter := s.newLevelLimiter()
	progress := s.newProgressCoalescer()
	defer progress.Stop()
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events.C:
			if ev, ok := progress.Offer(ev); ok {
				if err := ew.Send(ev.Kind, ev.Status); err != nil {
					return
				}
			}
		case <-progress.C():
			if ev, ok := progress.Flush(); ok {
				if err := ew.Send(ev.Kind, ev.Status); err != nil {
					return
				}
			}
		case sample := <-samples.C:
			if !limiter.Allow() {
				continue
			}
			if err := ew.Send(eventLoudness, sample); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := ew.Comment("heartbeat"); err != nil {
				return
			}
		}
	}
}
