// Package session couples the loudness monitor to the scroll scheduler for
// the song being presented.
//
// A Session is not safe for concurrent use; Loop owns it and runs every
// tick and command on one goroutine.
package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/satindergrewal/cueline/internal/monitor"
	"github.com/satindergrewal/cueline/internal/scroll"
	"github.com/satindergrewal/cueline/internal/song"
	"github.com/satindergrewal/cueline/internal/stream"
	"github.com/satindergrewal/cueline/internal/validation"
)

var (
	ErrNoSong            = errors.New("no song loaded")
	ErrArmWhileScrolling = errors.New("monitor cannot be armed unless the scroll is idle")
)

// Options sets the initial page layout.
type Options struct {
	ViewportHeight float64
	LineHeight     float64
}

// Event kinds.
const (
	KindState    = "state"
	KindProgress = "progress"
)

// Event is published whenever the observable status changes. Kind is
// "progress" when only the offset moved and "state" otherwise.
type Event struct {
	Kind   string `json:"kind"`
	Status Status `json:"status"`
}

// Status is the observable session state.
type Status struct {
	SongID   string          `json:"song_id,omitempty"`
	Title    string          `json:"title,omitempty"`
	Scroll   scroll.State    `json:"scroll_state"`
	OffsetPx float64         `json:"offset_px"`
	MaxPx    float64         `json:"max_offset_px"`
	Progress scroll.Progress `json:"progress"`
	Config   scroll.Config   `json:"config"`
	Monitor  monitor.Status  `json:"monitor"`
}

// Update changes presentation settings mid-session. Nil fields are left as is.
type Update struct {
	SpeedPxPerSecond *float64 `json:"speed_px_per_second" validate:"omitempty,gt=0"`
	FontSizePx       *float64 `json:"font_size_px" validate:"omitempty,gt=0"`
	ThresholdDB      *float64 `json:"threshold_db" validate:"omitempty,gte=-140,lte=0"`
}

type Session struct {
	logger  *slog.Logger
	monitor *monitor.Monitor
	opts    Options

	song  *song.Song
	page  *scroll.Page
	sched *scroll.Scheduler

	events *stream.Broadcaster[Event]
	last   Status
}

// New creates a session with no song loaded.
func New(mon *monitor.Monitor, opts Options, logger *slog.Logger) *Session {
	if opts.LineHeight <= 0 {
		opts.LineHeight = scroll.DefaultLineHeight
	}
	s := &Session{
		logger:  logger.With("component", "session"),
		monitor: mon,
		opts:    opts,
		events:  stream.NewBroadcaster[Event](stream.DefaultBuffer),
	}
	s.last = s.Status()
	return s
}

// Events is the fan-out of status changes.
func (s *Session) Events() *stream.Broadcaster[Event] { return s.events }

// Samples is the monitor's loudness fan-out.
func (s *Session) Samples() *stream.Broadcaster[monitor.Sample] { return s.monitor.Samples() }

// Load presents sg, replacing any current song. The monitor is disarmed and
// the scroll starts Idle at the top.
func (s *Session) Load(sg song.Song) error {
	if err := sg.Validate(); err != nil {
		return err
	}
	page := scroll.NewPage(sg.Lyrics, sg.FontSizePx, s.opts.LineHeight, s.viewportHeight())
	sched, err := scroll.NewScheduler(page, sg.ScrollConfig())
	if err != nil {
		return err
	}

	s.monitor.SetArmed(false, sg.ThresholdDB)
	s.song, s.page, s.sched = &sg, page, sched
	s.logger.Info("song loaded", "id", sg.ID, "title", sg.Title, "lines", page.Lines())
	return nil
}

func (s *Session) viewportHeight() float64 {
	if s.page != nil {
		return s.page.Height()
	}
	return s.opts.ViewportHeight
}

// Exit leaves presentation: the monitor is released and the song unloaded.
func (s *Session) Exit() {
	s.monitor.SetArmed(false, s.monitor.Threshold())
	if s.song != nil {
		s.opts.ViewportHeight = s.page.Height()
		s.logger.Info("session exited", "id", s.song.ID)
	}
	s.song, s.page, s.sched = nil, nil, nil
}

// Arm arms or disarms the monitor. threshold overrides the song's threshold
// when non-nil. Arming is only allowed while the scroll is Idle.
func (s *Session) Arm(enabled bool, threshold *float64) error {
	if s.song == nil {
		return ErrNoSong
	}
	if threshold != nil {
		if err := validation.Struct(Update{ThresholdDB: threshold}); err != nil {
			return err
		}
	}
	if enabled && s.sched.State() != scroll.Idle {
		return ErrArmWhileScrolling
	}
	if threshold != nil {
		s.song.ThresholdDB = *threshold
	}
	s.monitor.SetArmed(enabled, s.song.ThresholdDB)
	return nil
}

// Start scrolls by hand. The monitor is disarmed while scrolling.
func (s *Session) Start() error {
	if s.sched == nil {
		return ErrNoSong
	}
	if s.sched.Start() {
		s.monitor.SetArmed(false, s.song.ThresholdDB)
		s.logger.Info("scroll started", "by", "presenter")
	}
	return nil
}

func (s *Session) Pause() error {
	if s.sched == nil {
		return ErrNoSong
	}
	if s.sched.Pause() {
		s.logger.Info("scroll paused", "offset_px", s.page.Offset())
	}
	return nil
}

// Reset returns the scroll to Idle at the top.
func (s *Session) Reset() error {
	if s.sched == nil {
		return ErrNoSong
	}
	s.sched.Reset()
	s.logger.Info("scroll reset")
	return nil
}

// Configure applies u. Speed changes take effect on the next tick; a font
// size change keeps the scroll position.
func (s *Session) Configure(u Update) error {
	if s.sched == nil {
		return ErrNoSong
	}
	if err := validation.Struct(u); err != nil {
		return err
	}
	cfg := s.sched.Config()
	if u.SpeedPxPerSecond != nil {
		cfg.SpeedPxPerSecond = *u.SpeedPxPerSecond
	}
	if u.FontSizePx != nil {
		cfg.FontSizePx = *u.FontSizePx
	}
	if err := s.sched.SetConfig(cfg); err != nil {
		return err
	}
	s.page.SetFontSize(cfg.FontSizePx)
	s.sched.Refresh()
	s.song.SpeedPxPerSecond, s.song.FontSizePx = cfg.SpeedPxPerSecond, cfg.FontSizePx

	if u.ThresholdDB != nil {
		s.song.ThresholdDB = *u.ThresholdDB
		s.monitor.SetThreshold(*u.ThresholdDB)
	}
	return nil
}

// ScrollTo moves the page by hand.
func (s *Session) ScrollTo(px float64) error {
	if s.sched == nil {
		return ErrNoSong
	}
	s.sched.ScrollTo(px)
	return nil
}

// Resize records new viewport measurements from the presentation layer.
// contentHeight <= 0 keeps the current content height.
func (s *Session) Resize(height, contentHeight float64) error {
	if s.sched == nil {
		s.opts.ViewportHeight = max(height, 0)
		return nil
	}
	s.page.Resize(height, contentHeight)
	s.sched.Refresh()
	return nil
}

// Tick runs one frame: the monitor samples, a fresh trigger starts the
// scroll on the same frame, and the scheduler advances.
func (s *Session) Tick(now time.Time) {
	s.monitor.Tick(now)
	if s.sched != nil {
		if s.sched.ObserveTrigger(s.monitor.Triggered()) {
			s.monitor.SetArmed(false, s.song.ThresholdDB)
			s.logger.Info("scroll started", "by", "trigger")
		}
		if s.sched.Tick(now) && s.sched.State() == scroll.Finished {
			s.logger.Info("scroll finished", "id", s.song.ID)
		}
	}
	s.publish()
}

// Close releases the capture device.
func (s *Session) Close() {
	s.monitor.Close()
}

func (s *Session) Status() Status {
	st := Status{
		Progress: scroll.ComputeProgress(0, 0),
		Monitor:  s.monitor.Status(),
	}
	if s.song == nil {
		return st
	}
	st.SongID = s.song.ID
	st.Title = s.song.Title
	st.Scroll = s.sched.State()
	st.OffsetPx = s.page.Offset()
	st.MaxPx = s.page.MaxOffset()
	st.Progress = s.sched.Progress()
	st.Config = s.sched.Config()
	return st
}

// publish emits an Event if anything other than the live level changed.
func (s *Session) publish() {
	st := s.Status()
	cur, prev := st, s.last
	cur.Monitor.LevelDB, prev.Monitor.LevelDB = 0, 0
	if cur == prev {
		return
	}

	kind := KindState
	cur.OffsetPx, prev.OffsetPx = 0, 0
	cur.Progress, prev.Progress = scroll.Progress{}, scroll.Progress{}
	if cur == prev {
		kind = KindProgress
	}
	s.last = st
	s.events.Publish(Event{Kind: kind, Status: st})
}
