package scroll

import (
	"time"
)

// Scheduler advances a Viewport once per tick while Scrolling. It owns the
// scroll state; the offset lives in the viewport so manual scrolling and the
// scheduler see the same value.
type Scheduler struct {
	vp       Viewport
	cfg      Config
	state    State
	last     time.Time
	fresh    bool
	trigger  bool
	progress Progress
}

// NewScheduler creates an idle scheduler for vp.
func NewScheduler(vp Viewport, cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{vp: vp, cfg: cfg}
	s.Refresh()
	return s, nil
}

// Start begins scrolling from Idle and reports whether it did.
func (s *Scheduler) Start() bool {
	if s.state != Idle {
		return false
	}
	s.state = Scrolling
	s.fresh = true
	return true
}

// Pause stops scrolling and keeps the offset.
func (s *Scheduler) Pause() bool {
	if s.state != Scrolling {
		return false
	}
	s.state = Idle
	return true
}

// Reset returns to Idle at the top of the content.
func (s *Scheduler) Reset() {
	s.state = Idle
	s.fresh = false
	s.trigger = false
	s.vp.SetOffset(0)
	s.Refresh()
}

// Tick advances one frame at now and reports whether the offset or state
// changed. The first tick after Start measures no elapsed time.
func (s *Scheduler) Tick(now time.Time) bool {
	if s.state != Scrolling {
		return false
	}

	var dt float64
	if s.fresh {
		s.fresh = false
	} else {
		dt = max(now.Sub(s.last).Seconds(), 0)
	}
	s.last = now

	offset, maxOffset := s.vp.Offset(), s.vp.MaxOffset()
	next := Advance(offset, maxOffset, s.cfg.SpeedPxPerSecond, dt)
	changed := next != offset
	if changed {
		s.vp.SetOffset(next)
		next = s.vp.Offset()
	}
	s.progress = ComputeProgress(next, maxOffset)

	if maxOffset-next <= FinishTolerance {
		s.state = Finished
		return true
	}
	return changed
}

// ObserveTrigger feeds the monitor's trigger flag. A rising edge while Idle
// starts the scroll; it reports whether it did.
func (s *Scheduler) ObserveTrigger(triggered bool) bool {
	rising := triggered && !s.trigger
	s.trigger = triggered
	if !rising {
		return false
	}
	return s.Start()
}

// SetConfig replaces the configuration. Offset and frame timing are kept so
// a new speed applies from the next tick.
func (s *Scheduler) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

// ScrollTo moves the viewport by hand, clamped to its extent. It is allowed
// in any state.
func (s *Scheduler) ScrollTo(px float64) {
	px = min(max(px, 0), max(s.vp.MaxOffset(), 0))
	s.vp.SetOffset(px)
	s.Refresh()
}

// Refresh recomputes progress from the viewport, for example after a resize.
func (s *Scheduler) Refresh() {
	s.progress = ComputeProgress(s.vp.Offset(), s.vp.MaxOffset())
}

func (s *Scheduler) State() State { return s.state }
func (s *Scheduler) Config() Config { return s.cfg }
func (s *Scheduler) Progress() Progress { return s.progress }
func (s *Scheduler) Viewport() Viewport { return s.vp }
