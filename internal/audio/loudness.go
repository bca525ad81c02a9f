package audio

import "math"

// RMS returns the root-mean-square of the window. An empty window is silence.
func RMS(window []float32) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(window)))
}

// Decibels converts an RMS magnitude to dBFS, floored at Epsilon.
func Decibels(rms float64) float64 {
	return 20 * math.Log10(math.Max(rms, Epsilon))
}

// Amplitude returns the constant sample value whose RMS equals db.
func Amplitude(db float64) float32 {
	return float32(math.Pow(10, db/20))
}
