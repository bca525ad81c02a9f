package audio

import "math"

// Smoother is a one-pole low-pass over successive values: y = k*y + (1-k)*x.
// The first value after New or Reset passes through unchanged.
type Smoother struct {
	k      float64
	y      float64
	primed bool
}

// NewSmoother returns a smoother with coefficient k in [0,1).
func NewSmoother(k float64) *Smoother {
	if k < 0 {
		k = 0
	}
	if k >= 1 {
		k = 0.999
	}
	return &Smoother{k: k}
}

// Next folds x into the running value and returns it.
func (s *Smoother) Next(x float64) float64 {
	if !s.primed {
		s.y, s.primed = x, true
		return x
	}
	s.y = s.k*s.y + (1-s.k)*x
	return s.y
}

// Reset clears the filter state.
func (s *Smoother) Reset() {
	s.y, s.primed = 0, false
}

// Source yields the most recent captured samples.
type Source interface {
	Window(dst []float32) (int, error)
}

// Analyser estimates the level of a Source once per read. Each read takes the
// mean square of the latest WindowSize samples and smooths it across reads
// with the package Smoothing constant, so one loud window cannot dominate.
type Analyser struct {
	src   Source
	power *Smoother
	buf   []float32
}

// NewAnalyser creates an analyser reading WindowSize samples per call.
func NewAnalyser(src Source) *Analyser {
	return &Analyser{
		src:   src,
		power: NewSmoother(Smoothing),
		buf:   make([]float32, WindowSize),
	}
}

// Read returns the smoothed level in dBFS.
func (a *Analyser) Read() (float64, error) {
	n, err := a.src.Window(a.buf)
	if err != nil {
		return SilenceDB, err
	}
	rms := RMS(a.buf[:n])
	ms := a.power.Next(rms * rms)
	return Decibels(math.Sqrt(ms)), nil
}
