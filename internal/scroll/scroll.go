// Package scroll implements the frame-driven autoscroll state machine.
package scroll

import (
	"fmt"

	"github.com/satindergrewal/cueline/internal/validation"
)

// FinishTolerance is how close to the maximum offset, in pixels, counts as
// the end of the content.
const FinishTolerance = 1.0

// State is the scheduler state.
type State int

const (
	Idle State = iota
	Scrolling
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scrolling:
		return "scrolling"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = Idle
	case "scrolling":
		*s = Scrolling
	case "finished":
		*s = Finished
	default:
		return fmt.Errorf("unknown state %q", b)
	}
	return nil
}

// Config is the scroll speed and rendered font size.
type Config struct {
	SpeedPxPerSecond float64 `json:"speed_px_per_second" validate:"gt=0"`
	FontSizePx       float64 `json:"font_size_px" validate:"gt=0"`
}

func (c Config) Validate() error {
	return validation.Struct(c)
}

// Viewport is the scrollable surface the scheduler drives. Other writers,
// such as the presenter scrolling by hand, may move it too.
type Viewport interface {
	Offset() float64
	MaxOffset() float64
	SetOffset(px float64)
}

// Advance returns the offset after moving speed*dt pixels, capped at maxOffset.
// It never moves backward.
func Advance(offset, maxOffset, speed, dt float64) float64 {
	move := speed * dt
	if move <= 0 {
		return offset
	}
	next := offset + move
	if next > maxOffset {
		next = maxOffset
	}
	if next < offset {
		return offset
	}
	return next
}

// Progress describes how far through the content the viewport is.
// Remaining is the share still below the viewport. When there is nothing
// to scroll Defined is false and Remaining is 100.
type Progress struct {
	Scrolled  float64 `json:"scrolled_percent"`
	Remaining float64 `json:"remaining_percent"`
	Defined   bool    `json:"defined"`
}

// ComputeProgress derives Progress from an offset and maximum offset.
func ComputeProgress(offset, maxOffset float64) Progress {
	if maxOffset <= 0 {
		return Progress{Remaining: 100}
	}
	pct := min(max(offset/maxOffset*100, 0), 100)
	return Progress{Scrolled: pct, Remaining: 100 - pct, Defined: true}
}
