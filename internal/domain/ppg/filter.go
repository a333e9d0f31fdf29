package ppg

import "time"

// Detrend returns values with their mean subtracted.
func Detrend(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	for i, v := range values {
		out[i] = v - mean
	}
	return out
}

// MovingAverage applies a centred moving average of the given radius.
// The result is trimmed by radius at both ends: out[j] corresponds to in[j+radius].
func MovingAverage(values []float64, radius int) []float64 {
	n := len(values) - 2*radius
	if radius <= 0 {
		return append([]float64(nil), values...)
	}
	if n <= 0 {
		return nil
	}
	width := float64(2*radius + 1)
	out := make([]float64, n)
	var sum float64
	for i := 0; i < 2*radius+1; i++ {
		sum += values[i]
	}
	out[0] = sum / width
	for j := 1; j < n; j++ {
		sum += values[j+2*radius] - values[j-1]
		out[j] = sum / width
	}
	return out
}

// HighPass applies y[i] = alpha*(y[i-1] + x[i] - x[i-1]) with y[0] = 0.
func HighPass(values []float64, alpha float64) []float64 {
	out := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		out[i] = alpha * (out[i-1] + values[i] - values[i-1])
	}
	return out
}

// Filter detrends and smooths values sampled at times. offset is the
// number of leading input samples dropped, so filtered[j] lines up with
// values[j+offset].
func (e *Estimator) Filter(values []float64, times []time.Duration) (filtered []float64, offset int) {
	detrended := Detrend(values)
	if e.params.Smoothing == SmoothingHighPass {
		return HighPass(detrended, e.params.HighPassAlpha), 0
	}
	radius := samplesIn(e.params.SmoothingSpan, SampleRate(times))
	return MovingAverage(detrended, radius), radius
}
