package ppg

import (
	"math"
	"time"
)

// ReferenceRate is assumed when the timestamps cannot tell the cadence.
const ReferenceRate = 30.0

// SampleRate estimates the cadence of times in samples per second from the
// median spacing, so gaps left by dropped or gated frames do not skew it.
func SampleRate(times []time.Duration) float64 {
	deltas := make([]float64, 0, len(times))
	for i := 1; i < len(times); i++ {
		if d := (times[i] - times[i-1]).Seconds(); d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return ReferenceRate
	}
	return 1 / median(deltas)
}

// samplesIn converts d into a whole number of samples at rate, at least one.
func samplesIn(d time.Duration, rate float64) int {
	return max(1, int(math.Round(d.Seconds()*rate)))
}
