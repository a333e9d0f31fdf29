package ppg

import "time"

// Default estimator parameters. One set shared by every capture path.
const (
	DefaultPixelStride     = 4
	DefaultMinSamples      = 60
	DefaultMinRedDominance = 20.0
	DefaultMinBrightness   = 40.0
	DefaultMaxBrightness   = 240.0
	DefaultQualityWindow   = 30
	DefaultGoodVariation   = 8.0
	DefaultFairVariation   = 4.0
	DefaultSmoothingSpan   = 100 * time.Millisecond
	DefaultHighPassAlpha   = 0.95
	DefaultPeakSpan        = 67 * time.Millisecond
	DefaultPeakThreshold   = 0.6
	DefaultRefractory      = 300 * time.Millisecond
	DefaultMinPeaks        = 3
	DefaultMinIntervals    = 2
	DefaultMinBPM          = 40
	DefaultMaxBPM          = 180
)

// Smoothing selects the noise filter applied after detrending.
type Smoothing string

// Smoothing modes.
const (
	SmoothingMovingAverage Smoothing = "moving-average"
	SmoothingHighPass      Smoothing = "high-pass"
)

// Params holds every tunable of the pipeline.
type Params struct {
	PixelStride int

	MinSamples int

	MinRedDominance float64
	MinBrightness   float64
	MaxBrightness   float64

	QualityWindow int
	GoodVariation float64
	FairVariation float64

	// SmoothingSpan and PeakSpan are converted to sample counts at the
	// cadence measured from the recording's timestamps.
	Smoothing     Smoothing
	SmoothingSpan time.Duration
	HighPassAlpha float64

	PeakSpan      time.Duration
	PeakThreshold float64
	Refractory    time.Duration
	MinPeaks      int

	MinIntervals int
	MinBPM       int
	MaxBPM       int
}

// DefaultParams returns the documented default parameter set.
func DefaultParams() Params {
	return Params{
		PixelStride:     DefaultPixelStride,
		MinSamples:      DefaultMinSamples,
		MinRedDominance: DefaultMinRedDominance,
		MinBrightness:   DefaultMinBrightness,
		MaxBrightness:   DefaultMaxBrightness,
		QualityWindow:   DefaultQualityWindow,
		GoodVariation:   DefaultGoodVariation,
		FairVariation:   DefaultFairVariation,
		Smoothing:       SmoothingMovingAverage,
		SmoothingSpan:   DefaultSmoothingSpan,
		HighPassAlpha:   DefaultHighPassAlpha,
		PeakSpan:        DefaultPeakSpan,
		PeakThreshold:   DefaultPeakThreshold,
		Refractory:      DefaultRefractory,
		MinPeaks:        DefaultMinPeaks,
		MinIntervals:    DefaultMinIntervals,
		MinBPM:          DefaultMinBPM,
		MaxBPM:          DefaultMaxBPM,
	}
}

// Option applies a configuration option to the Estimator.
type Option func(*Params)

// WithParams replaces the whole parameter set. Zero fields keep their
// defaults, except that a set MaxBrightness applies the whole contact gate,
// so a zero MinRedDominance or MinBrightness is then taken as given.
func WithParams(p Params) Option {
	return func(dst *Params) {
		d := DefaultParams()
		if p.PixelStride > 0 {
			d.PixelStride = p.PixelStride
		}
		if p.MinSamples > 0 {
			d.MinSamples = p.MinSamples
		}
		if p.MaxBrightness > 0 && p.MinRedDominance >= 0 && p.MinBrightness >= 0 && p.MinBrightness < p.MaxBrightness {
			d.MinRedDominance = p.MinRedDominance
			d.MinBrightness = p.MinBrightness
			d.MaxBrightness = p.MaxBrightness
		}
		if p.QualityWindow > 0 {
			d.QualityWindow = p.QualityWindow
		}
		if p.GoodVariation > 0 {
			d.GoodVariation = p.GoodVariation
		}
		if p.FairVariation > 0 {
			d.FairVariation = p.FairVariation
		}
		if p.Smoothing != "" {
			d.Smoothing = p.Smoothing
		}
		if p.SmoothingSpan > 0 {
			d.SmoothingSpan = p.SmoothingSpan
		}
		if p.HighPassAlpha > 0 && p.HighPassAlpha < 1 {
			d.HighPassAlpha = p.HighPassAlpha
		}
		if p.PeakSpan > 0 {
			d.PeakSpan = p.PeakSpan
		}
		if p.PeakThreshold > 0 && p.PeakThreshold < 1 {
			d.PeakThreshold = p.PeakThreshold
		}
		if p.Refractory > 0 {
			d.Refractory = p.Refractory
		}
		if p.MinPeaks > 0 {
			d.MinPeaks = p.MinPeaks
		}
		if p.MinIntervals > 0 {
			d.MinIntervals = p.MinIntervals
		}
		if p.MinBPM > 0 && p.MaxBPM > p.MinBPM {
			d.MinBPM = p.MinBPM
			d.MaxBPM = p.MaxBPM
		}
		*dst = d
	}
}

// WithMinSamples sets the minimum number of samples a recording needs.
func WithMinSamples(n int) Option {
	return func(p *Params) {
		if n > 0 {
			p.MinSamples = n
		}
	}
}

// WithBPMBand sets the plausible heart-rate band.
func WithBPMBand(minBPM, maxBPM int) Option {
	return func(p *Params) {
		if minBPM > 0 && maxBPM > minBPM {
			p.MinBPM = minBPM
			p.MaxBPM = maxBPM
		}
	}
}

// WithMovingAverage smooths with a centred moving average reaching span
// to either side of each sample.
func WithMovingAverage(span time.Duration) Option {
	return func(p *Params) {
		if span > 0 {
			p.Smoothing = SmoothingMovingAverage
			p.SmoothingSpan = span
		}
	}
}

// WithHighPass smooths with a first-order recursive high-pass filter.
func WithHighPass(alpha float64) Option {
	return func(p *Params) {
		if alpha > 0 && alpha < 1 {
			p.Smoothing = SmoothingHighPass
			p.HighPassAlpha = alpha
		}
	}
}

// WithRefractory sets the minimum spacing between accepted peaks.
func WithRefractory(d time.Duration) Option {
	return func(p *Params) {
		if d > 0 {
			p.Refractory = d
		}
	}
}

// WithContactGate sets the finger presence thresholds.
func WithContactGate(minRedDominance, minBrightness, maxBrightness float64) Option {
	return func(p *Params) {
		if maxBrightness > minBrightness {
			p.MinRedDominance = minRedDominance
			p.MinBrightness = minBrightness
			p.MaxBrightness = maxBrightness
		}
	}
}

// WithPixelStride sets the pixel subsampling step of the sampler.
func WithPixelStride(n int) Option {
	return func(p *Params) {
		if n > 0 {
			p.PixelStride = n
		}
	}
}
