// Package capturetest provides a scripted capture device for tests.
package capturetest

import (
	"context"
	"math"
	"sync"

	"github.com/satindergrewal/cueline/internal/audio"
	"github.com/satindergrewal/cueline/internal/capture"
)

// Device is a capture.Device whose streams replay a script of levels.
// Each Window call fills the window with a constant amplitude equal to the
// next scripted level in dB; the last level repeats once the script runs out.
type Device struct {
	// Err, when set, is returned by Acquire.
	Err error
	// Gate, when set, makes Acquire wait until it is closed or ctx is done.
	Gate chan struct{}
	// LoseAfter makes Window fail with ErrDeviceLost after that many reads.
	LoseAfter int

	mu       sync.Mutex
	levels   []float64
	next     int
	reads    int
	acquired int
	released int
	open     bool
}

// New returns a device that will replay levels.
func New(levels ...float64) *Device {
	return &Device{levels: levels}
}

// Readings returns the window levels that make an audio.Analyser report
// levels in order. A reading below what the smoothing allows becomes a silent
// window, so the analyser reports the closest reachable value instead.
func Readings(levels ...float64) []float64 {
	windows := make([]float64, len(levels))
	var power float64
	for i, db := range levels {
		want := math.Pow(10, db/10)
		if i == 0 {
			power = want
			windows[i] = db
			continue
		}
		ms := (want - audio.Smoothing*power) / (1 - audio.Smoothing)
		if ms <= 0 {
			ms = 0
			windows[i] = audio.SilenceDB
		} else {
			windows[i] = 10 * math.Log10(ms)
		}
		power = audio.Smoothing*power + (1-audio.Smoothing)*ms
	}
	return windows
}

func (d *Device) Name() string { return "test" }

// Push appends levels to the script.
func (d *Device) Push(levels ...float64) {
	d.mu.Lock()
	d.levels = append(d.levels, levels...)
	d.mu.Unlock()
}

func (d *Device) Acquire(ctx context.Context) (capture.Stream, error) {
	if d.Gate != nil {
		select {
		case <-d.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return nil, capture.Unavailable(d.Name(), nil)
	}
	d.open = true
	d.acquired++
	return &stream{dev: d}, nil
}

// Acquired counts successful acquisitions.
func (d *Device) Acquired() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquired
}

// Released counts closed streams.
func (d *Device) Released() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

// Open reports whether a stream is currently held.
func (d *Device) Open() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Reads counts Window calls across all streams.
func (d *Device) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

type stream struct {
	dev    *Device
	closed bool
}

func (s *stream) Window(dst []float32) (int, error) {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reads++
	if d.LoseAfter > 0 && d.reads > d.LoseAfter {
		return 0, capture.Lost(d.Name(), nil)
	}

	db := audio.SilenceDB
	if len(d.levels) > 0 {
		i := d.next
		if i >= len(d.levels) {
			i = len(d.levels) - 1
		} else {
			d.next++
		}
		db = d.levels[i]
	}

	var a float32
	if db > audio.SilenceDB {
		a = audio.Amplitude(db)
	}
	for i := range dst {
		dst[i] = a
	}
	return len(dst), nil
}

func (s *stream) Close() error {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	d.open = false
	d.released++
	return nil
}
