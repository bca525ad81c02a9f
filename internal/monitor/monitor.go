// Package monitor turns captured audio into loudness samples and a latching
// threshold trigger.
//
// A Monitor is driven by Tick from a single goroutine. It holds the capture
// device only while armed; disarming releases it before SetArmed returns,
// and an acquisition still in flight is closed as soon as it completes.
package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/satindergrewal/cueline/internal/audio"
	"github.com/satindergrewal/cueline/internal/capture"
	"github.com/satindergrewal/cueline/internal/stream"
)

// State is the monitor lifecycle.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Failed
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "stopped":
		*s = Stopped
	case "starting":
		*s = Starting
	case "running":
		*s = Running
	case "failed":
		*s = Failed
	default:
		return fmt.Errorf("unknown state %q", b)
	}
	return nil
}

// Sample is one loudness reading.
type Sample struct {
	DB float64   `json:"db"`
	At time.Time `json:"at"`
}

// Status is a snapshot for observers.
type Status struct {
	State       State   `json:"state"`
	Armed       bool    `json:"armed"`
	ThresholdDB float64 `json:"threshold_db"`
	LevelDB     float64 `json:"level_db"`
	Triggered   bool    `json:"triggered"`
	Error       string  `json:"error,omitempty"`
	ErrorKind   string  `json:"error_kind,omitempty"`
}

// Monitor samples a capture device and latches a trigger when the level
// rises above a threshold.
type Monitor struct {
	device  capture.Device
	logger  *slog.Logger
	samples *stream.Broadcaster[Sample]

	armed     bool
	threshold float64
	state     State
	err       error
	level     float64
	triggered bool

	pending  *acquisition
	stream   capture.Stream
	analyser *audio.Analyser
}

// New creates a stopped monitor for device.
func New(device capture.Device, logger *slog.Logger) *Monitor {
	return &Monitor{
		device:  device,
		logger:  logger.With("component", "monitor", "device", device.Name()),
		samples: stream.NewBroadcaster[Sample](stream.DefaultBuffer),
		state:   Stopped,
		level:   audio.SilenceDB,
	}
}

// Samples is the fan-out of loudness readings. Nothing is published while
// the monitor is not running.
func (m *Monitor) Samples() *stream.Broadcaster[Sample] { return m.samples }

// SetArmed arms or disarms the monitor. Arming starts acquiring the device
// and clears the trigger; disarming releases the device. Repeating the
// current value only updates the threshold.
func (m *Monitor) SetArmed(enabled bool, thresholdDB float64) {
	m.threshold = thresholdDB
	if enabled == m.armed {
		return
	}

	if !enabled {
		m.armed = false
		m.release()
		m.state = Stopped
		m.triggered = false
		m.level = audio.SilenceDB
		m.logger.Info("monitor disarmed")
		return
	}

	m.armed = true
	m.err = nil
	m.triggered = false
	m.level = audio.SilenceDB
	m.state = Starting
	m.pending = acquire(m.device)
	m.logger.Info("monitor armed", "threshold_db", thresholdDB)
}

// SetThreshold changes the trigger threshold. An already latched trigger
// stays latched.
func (m *Monitor) SetThreshold(thresholdDB float64) {
	m.threshold = thresholdDB
}

// Tick advances the monitor by one frame. While running it reads one window,
// publishes the sample and returns it with ok set. The tick on which a
// pending acquisition completes does not sample.
func (m *Monitor) Tick(now time.Time) (Sample, bool) {
	switch m.state {
	case Starting:
		s, done, err := m.pending.poll()
		if !done {
			return Sample{}, false
		}
		m.pending = nil
		if err != nil {
			m.fail(err)
			return Sample{}, false
		}
		m.stream = s
		m.analyser = audio.NewAnalyser(s)
		m.state = Running
		m.logger.Info("capture started")
		return Sample{}, false

	case Running:
		db, err := m.analyser.Read()
		if err != nil {
			m.fail(err)
			return Sample{}, false
		}
		m.level = db
		sample := Sample{DB: db, At: now}
		m.samples.Publish(sample)

		if !m.triggered && db > m.threshold {
			m.triggered = true
			m.logger.Info("trigger latched", "db", db, "threshold_db", m.threshold)
		}
		return sample, true
	}
	return Sample{}, false
}

func (m *Monitor) fail(err error) {
	var ce *capture.Error
	if !errors.As(err, &ce) {
		if m.state == Running {
			err = capture.Lost(m.device.Name(), err)
		} else {
			err = capture.Unavailable(m.device.Name(), err)
		}
	}
	m.release()
	m.err = err
	m.state = Failed
	m.armed = false
	m.triggered = false
	m.level = audio.SilenceDB
	m.logger.Warn("capture failed", "kind", capture.KindOf(err).String(), "error", err)
}

// release drops the device and any acquisition in flight.
func (m *Monitor) release() {
	if m.pending != nil {
		m.pending.abandon()
		m.pending = nil
	}
	if m.stream != nil {
		if err := m.stream.Close(); err != nil {
			m.logger.Debug("close capture stream", "error", err)
		}
		m.stream = nil
	}
	m.analyser = nil
}

// Close disarms the monitor.
func (m *Monitor) Close() {
	m.SetArmed(false, m.threshold)
}

func (m *Monitor) Armed() bool { return m.armed }
func (m *Monitor) State() State { return m.state }
func (m *Monitor) Triggered() bool { return m.triggered }
func (m *Monitor) Level() float64 { return m.level }
func (m *Monitor) Threshold() float64 { return m.threshold }

// Err is the failure that put the monitor in Failed, or nil.
func (m *Monitor) Err() error { return m.err }

// Reason is the human-readable failure message, empty unless Failed.
func (m *Monitor) Reason() string {
	if m.err == nil {
		return ""
	}
	return capture.KindOf(m.err).Message()
}

func (m *Monitor) Status() Status {
	st := Status{
		State:       m.state,
		Armed:       m.armed,
		ThresholdDB: m.threshold,
		LevelDB:     m.level,
		Triggered:   m.triggered,
	}
	if m.err != nil {
		st.Error = m.Reason()
		st.ErrorKind = capture.KindOf(m.err).String()
	}
	return st
}
