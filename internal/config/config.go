// Package config defines service configuration and its loading.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers a .env file, a YAML file and VITALCAM_ environment variables on top.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"time"

	"github.com/okian/vitalcam/internal/domain/ppg"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DefaultSource is the capture source used when a start request names none.
	DefaultSource string `koanf:"default_source"`

	// Session timing.
	CountdownMS        int `koanf:"countdown_ms"`
	DurationS          int `koanf:"duration_s"`
	MinDurationS       int `koanf:"min_duration_s"`
	MaxDurationS       int `koanf:"max_duration_s"`
	FrameRate          int `koanf:"frame_rate"`
	ProgressIntervalMS int `koanf:"progress_interval_ms"`

	// Estimator parameters.
	PixelStride     int     `koanf:"pixel_stride"`
	MinSamples      int     `koanf:"min_samples"`
	MinRedDominance float64 `koanf:"min_red_dominance"`
	MinBrightness   float64 `koanf:"min_brightness"`
	MaxBrightness   float64 `koanf:"max_brightness"`
	QualityWindow   int     `koanf:"quality_window"`
	GoodVariation   float64 `koanf:"good_variation"`
	FairVariation   float64 `koanf:"fair_variation"`
	Smoothing       string  `koanf:"smoothing"`
	SmoothingMS     int     `koanf:"smoothing_ms"`
	HighPassAlpha   float64 `koanf:"high_pass_alpha"`
	PeakSpanMS      int     `koanf:"peak_span_ms"`
	PeakThreshold   float64 `koanf:"peak_threshold"`
	RefractoryMS    int     `koanf:"refractory_ms"`
	MinPeaks        int     `koanf:"min_peaks"`
	MinIntervals    int     `koanf:"min_intervals"`
	MinBPM          int     `koanf:"min_bpm"`
	MaxBPM          int     `koanf:"max_bpm"`

	// Synthetic source.
	SyntheticBPM   float64 `koanf:"synthetic_bpm"`
	SyntheticNoise float64 `koanf:"synthetic_noise"`

	// Reporting. Empty ReportURL and NATSURL disable the respective sink.
	ReportURL       string `koanf:"report_url"`
	ReportToken     string `koanf:"report_token"`
	ReportTimeoutMS int    `koanf:"report_timeout_ms"`
	NATSURL         string `koanf:"nats_url"`
	NATSSubject     string `koanf:"nats_subject"`
	Device          string `koanf:"device"`
	ReportQueueSize int    `koanf:"report_queue_size"`
	ReportWorkers   int    `koanf:"report_workers"`

	// FrameBuffer is the number of uploaded frames buffered per camera stream.
	FrameBuffer int `koanf:"frame_buffer"`
}

// New creates a Config with defaults.
func New() *Config {
	p := ppg.DefaultParams()
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		DefaultSource:      "camera",
		CountdownMS:        3000,
		DurationS:          30,
		MinDurationS:       10,
		MaxDurationS:       30,
		FrameRate:          30,
		ProgressIntervalMS: 250,
		PixelStride:        p.PixelStride,
		MinSamples:         p.MinSamples,
		MinRedDominance:    p.MinRedDominance,
		MinBrightness:      p.MinBrightness,
		MaxBrightness:      p.MaxBrightness,
		QualityWindow:      p.QualityWindow,
		GoodVariation:      p.GoodVariation,
		FairVariation:      p.FairVariation,
		Smoothing:          string(p.Smoothing),
		SmoothingMS:        int(p.SmoothingSpan / time.Millisecond),
		HighPassAlpha:      p.HighPassAlpha,
		PeakSpanMS:         int(p.PeakSpan / time.Millisecond),
		PeakThreshold:      p.PeakThreshold,
		RefractoryMS:       int(p.Refractory / time.Millisecond),
		MinPeaks:           p.MinPeaks,
		MinIntervals:       p.MinIntervals,
		MinBPM:             p.MinBPM,
		MaxBPM:             p.MaxBPM,
		SyntheticBPM:       72,
		SyntheticNoise:     1.0,
		ReportTimeoutMS:    5000,
		NATSSubject:        "vitalcam.readings",
		Device:             "webcam",
		ReportQueueSize:    1024,
		ReportWorkers:      2,
		FrameBuffer:        60,
	}
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MinDurationS <= 0 || c.MaxDurationS < c.MinDurationS:
		return fmt.Errorf("%w: duration bounds [%d, %d]", ErrInvalidConfig, c.MinDurationS, c.MaxDurationS)
	case c.DurationS < c.MinDurationS || c.DurationS > c.MaxDurationS:
		return fmt.Errorf("%w: duration_s %d outside bounds", ErrInvalidConfig, c.DurationS)
	case c.CountdownMS < 0:
		return fmt.Errorf("%w: countdown_ms %d", ErrInvalidConfig, c.CountdownMS)
	case c.FrameRate < 1 || c.FrameRate > 60:
		return fmt.Errorf("%w: frame_rate %d", ErrInvalidConfig, c.FrameRate)
	case c.MinBPM <= 0 || c.MaxBPM <= c.MinBPM:
		return fmt.Errorf("%w: bpm band [%d, %d]", ErrInvalidConfig, c.MinBPM, c.MaxBPM)
	case c.MinRedDominance < 0 || c.MinBrightness < 0:
		return fmt.Errorf("%w: contact gate thresholds must not be negative", ErrInvalidConfig)
	case c.MinBrightness >= c.MaxBrightness:
		return fmt.Errorf("%w: brightness window [%v, %v]", ErrInvalidConfig, c.MinBrightness, c.MaxBrightness)
	case c.Smoothing != string(ppg.SmoothingMovingAverage) && c.Smoothing != string(ppg.SmoothingHighPass):
		return fmt.Errorf("%w: smoothing %q", ErrInvalidConfig, c.Smoothing)
	case c.PeakThreshold <= 0 || c.PeakThreshold >= 1:
		return fmt.Errorf("%w: peak_threshold %v", ErrInvalidConfig, c.PeakThreshold)
	case c.ReportQueueSize <= 0:
		return fmt.Errorf("%w: report_queue_size %d", ErrInvalidConfig, c.ReportQueueSize)
	}
	return nil
}

// EstimatorParams returns the PPG parameters described by c.
func (c *Config) EstimatorParams() ppg.Params {
	return ppg.Params{
		PixelStride:     c.PixelStride,
		MinSamples:      c.MinSamples,
		MinRedDominance: c.MinRedDominance,
		MinBrightness:   c.MinBrightness,
		MaxBrightness:   c.MaxBrightness,
		QualityWindow:   c.QualityWindow,
		GoodVariation:   c.GoodVariation,
		FairVariation:   c.FairVariation,
		Smoothing:       ppg.Smoothing(c.Smoothing),
		SmoothingSpan:   time.Duration(c.SmoothingMS) * time.Millisecond,
		HighPassAlpha:   c.HighPassAlpha,
		PeakSpan:        time.Duration(c.PeakSpanMS) * time.Millisecond,
		PeakThreshold:   c.PeakThreshold,
		Refractory:      time.Duration(c.RefractoryMS) * time.Millisecond,
		MinPeaks:        c.MinPeaks,
		MinIntervals:    c.MinIntervals,
		MinBPM:          c.MinBPM,
		MaxBPM:          c.MaxBPM,
	}
}

// Countdown returns the default countdown.
func (c *Config) Countdown() time.Duration {
	return time.Duration(c.CountdownMS) * time.Millisecond
}

// Duration returns the default recording duration.
func (c *Config) Duration() time.Duration { return time.Duration(c.DurationS) * time.Second }

// DurationLimits returns the allowed recording duration range.
func (c *Config) DurationLimits() (time.Duration, time.Duration) {
	return time.Duration(c.MinDurationS) * time.Second, time.Duration(c.MaxDurationS) * time.Second
}

// ProgressInterval returns the progress emission interval.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressIntervalMS) * time.Millisecond
}

// ReportTimeout returns the per-delivery timeout.
func (c *Config) ReportTimeout() time.Duration {
	return time.Duration(c.ReportTimeoutMS) * time.Millisecond
}
