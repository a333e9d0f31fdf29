package ppg

import (
	"fmt"
	"math"
	"time"
)

// FindPeaks returns indices into times (the untrimmed sequence) of local
// maxima of filtered that clear the adaptive threshold and respect the
// refractory spacing. filtered[j] corresponds to times[j+offset].
// A peak must exceed every sample within PeakSpan on either side.
func (e *Estimator) FindPeaks(filtered []float64, times []time.Duration, offset int) ([]int, error) {
	nb := samplesIn(e.params.PeakSpan, SampleRate(times))
	if len(filtered) < 2*nb+1 {
		return nil, insufficient(ReasonInsufficientPeaks, "signal too short")
	}

	lo, hi := filtered[0], filtered[0]
	for _, v := range filtered[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	threshold := lo + e.params.PeakThreshold*(hi-lo)

	var peaks []int
	var last time.Duration
	for j := nb; j < len(filtered)-nb; j++ {
		v := filtered[j]
		if v <= threshold || !isLocalMax(filtered, j, nb) {
			continue
		}
		idx := j + offset
		if idx >= len(times) {
			break
		}
		if len(peaks) > 0 && times[idx]-last < e.params.Refractory {
			continue
		}
		peaks = append(peaks, idx)
		last = times[idx]
	}

	if len(peaks) < e.params.MinPeaks {
		return peaks, insufficient(ReasonInsufficientPeaks, fmt.Sprintf("%d found", len(peaks)))
	}
	return peaks, nil
}

// BeatTimes places each peak between samples by fitting a parabola through
// the peak and its two neighbours in filtered. Indices are as returned by
// FindPeaks.
func (e *Estimator) BeatTimes(filtered []float64, times []time.Duration, offset int, peaks []int) []time.Duration {
	beats := make([]time.Duration, 0, len(peaks))
	for _, idx := range peaks {
		if idx < 0 || idx >= len(times) {
			continue
		}
		beat := times[idx]
		j := idx - offset
		if j >= 1 && j+1 < len(filtered) && idx >= 1 && idx+1 < len(times) {
			a, b, c := filtered[j-1], filtered[j], filtered[j+1]
			if den := a - 2*b + c; den < 0 {
				delta := math.Max(-0.5, math.Min(0.5, 0.5*(a-c)/den))
				step := times[idx+1] - times[idx]
				if delta < 0 {
					step = times[idx] - times[idx-1]
				}
				beat += time.Duration(delta * float64(step))
			}
		}
		beats = append(beats, beat)
	}
	return beats
}

// isLocalMax reports whether values[j] tops its neighbourhood. Ties on the
// left are allowed so a flat top yields its last sample instead of nothing.
func isLocalMax(values []float64, j, nb int) bool {
	for k := 1; k <= nb; k++ {
		if values[j] < values[j-k] || values[j] <= values[j+k] {
			return false
		}
	}
	return true
}
