package ppg

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Aggregate turns beat times into a heart rate: the median of the
// instantaneous rates that fall inside the plausible band, rounded.
// It returns the rate and the number of intervals that contributed.
func (e *Estimator) Aggregate(beats []time.Duration) (int, int, error) {
	minBPM, maxBPM := float64(e.params.MinBPM), float64(e.params.MaxBPM)

	rates := make([]float64, 0, len(beats))
	for i := 1; i < len(beats); i++ {
		dt := (beats[i] - beats[i-1]).Seconds()
		if dt <= 0 {
			continue
		}
		rate := 60 / dt
		if rate < minBPM || rate > maxBPM {
			continue
		}
		rates = append(rates, rate)
	}

	if len(rates) < e.params.MinIntervals {
		return 0, len(rates), insufficient(ReasonInsufficientIntervals, fmt.Sprintf("%d valid", len(rates)))
	}

	bpm := int(math.Round(median(rates)))
	if bpm < e.params.MinBPM || bpm > e.params.MaxBPM {
		return 0, len(rates), &AnalysisError{Kind: ErrOutOfRange, Reason: ReasonOutOfRange, Detail: fmt.Sprintf("%d bpm", bpm)}
	}
	return bpm, len(rates), nil
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
