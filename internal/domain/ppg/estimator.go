// Package ppg estimates heart rate from camera photoplethysmography samples.
//
// The pipeline is: sample each frame to a mean colour, gate on finger
// contact, detrend and smooth the green channel, pick peaks, and take the
// median inter-beat rate. Window lengths are durations, sized in samples
// from the cadence of the recording itself.
package ppg

import (
	"time"

	"github.com/okian/vitalcam/internal/domain/model"
)

// Estimator runs the PPG pipeline with one fixed parameter set.
// It holds no per-session state and is safe for concurrent use.
type Estimator struct {
	params Params
}

// New creates an estimator with the default parameters adjusted by opts.
func New(opts ...Option) *Estimator {
	p := DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return &Estimator{params: p}
}

// Params returns the parameter set in use.
func (e *Estimator) Params() Params {
	return e.params
}

// Analyze estimates a heart rate from a finished recording. method is
// copied into the estimate. Failures are *AnalysisError values that wrap
// ErrInsufficientSignal or ErrOutOfRange.
func (e *Estimator) Analyze(samples []model.Sample, method string) (model.Estimate, error) {
	if len(samples) < e.params.MinSamples {
		return model.Estimate{}, insufficient(ReasonInsufficientSamples, "")
	}

	contact := make([]model.Sample, 0, len(samples))
	for _, s := range samples {
		if s.Contact {
			contact = append(contact, s)
		}
	}
	if len(contact) < e.params.MinSamples {
		return model.Estimate{}, insufficient(ReasonNoFinger, "")
	}

	quality := e.Quality(contact)
	if quality == model.QualityPoor || quality == model.QualityUnknown {
		return model.Estimate{}, insufficient(ReasonWeakSignal, string(quality))
	}

	green := make([]float64, len(contact))
	times := make([]time.Duration, len(contact))
	for i, s := range contact {
		green[i] = s.Green
		times[i] = s.At
	}

	filtered, offset := e.Filter(green, times)
	peaks, err := e.FindPeaks(filtered, times, offset)
	if err != nil {
		return model.Estimate{}, err
	}

	bpm, intervals, err := e.Aggregate(e.BeatTimes(filtered, times, offset, peaks))
	if err != nil {
		return model.Estimate{}, err
	}

	return model.Estimate{
		BPM:       bpm,
		Method:    method,
		Quality:   quality,
		Peaks:     len(peaks),
		Intervals: intervals,
	}, nil
}
