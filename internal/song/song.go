// Package song stores lyric documents and their presentation settings.
package song

import (
	"errors"
	"strings"
	"time"

	"github.com/satindergrewal/cueline/internal/scroll"
	"github.com/satindergrewal/cueline/internal/validation"
)

// ErrNotFound is returned when no song has the requested ID.
var ErrNotFound = errors.New("song not found")

// Song is a stored lyric document.
type Song struct {
	ID               string    `json:"id" msgpack:"id"`
	Title            string    `json:"title" msgpack:"title" validate:"required,max=200"`
	Artist           string    `json:"artist,omitempty" msgpack:"artist" validate:"max=200"`
	Lyrics           string    `json:"lyrics" msgpack:"lyrics"`
	SpeedPxPerSecond float64   `json:"speed_px_per_second" msgpack:"speed" validate:"gt=0"`
	FontSizePx       float64   `json:"font_size_px" msgpack:"font_size" validate:"gt=0"`
	ThresholdDB      float64   `json:"threshold_db" msgpack:"threshold" validate:"gte=-140,lte=0"`
	CreatedAt        time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" msgpack:"updated_at"`
}

// Validate checks the user-editable fields.
func (s *Song) Validate() error {
	s.Title = strings.TrimSpace(s.Title)
	return validation.Struct(s)
}

// ScrollConfig is the song's scroll speed and font size.
func (s *Song) ScrollConfig() scroll.Config {
	return scroll.Config{SpeedPxPerSecond: s.SpeedPxPerSecond, FontSizePx: s.FontSizePx}
}

// Defaults fills zero presentation settings from d.
func (s *Song) Defaults(d Song) {
	if s.SpeedPxPerSecond == 0 {
		s.SpeedPxPerSecond = d.SpeedPxPerSecond
	}
	if s.FontSizePx == 0 {
		s.FontSizePx = d.FontSizePx
	}
	if s.ThresholdDB == 0 {
		s.ThresholdDB = d.ThresholdDB
	}
}
