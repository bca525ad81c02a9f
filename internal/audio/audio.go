package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 1
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960 // samples per 20ms frame at 48kHz mono

	// WindowSize is the number of most recent samples analysed per tick.
	WindowSize = 256

	// Smoothing is the one-pole coefficient the analyser applies to window
	// power from one read to the next. Fixed; not exposed as configuration.
	Smoothing = 0.8

	// Epsilon floors the RMS before the log so silence stays finite.
	Epsilon = 1e-7
)

// SilenceDB is the level reported for an all-zero window.
var SilenceDB = Decibels(0)
