package config_test

import (
	"testing"
	"time"

	"github.com/okian/vitalcam/internal/config"
	"github.com/okian/vitalcam/internal/domain/ppg"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DefaultSource, convey.ShouldEqual, "camera")
			convey.So(cfg.Countdown(), convey.ShouldEqual, 3*time.Second)
			convey.So(cfg.Duration(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.FrameRate, convey.ShouldEqual, 30)
			convey.So(cfg.ProgressInterval(), convey.ShouldEqual, 250*time.Millisecond)
			convey.So(cfg.ReportTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the estimator parameters match the package defaults", func() {
			convey.So(cfg.EstimatorParams(), convey.ShouldResemble, ppg.DefaultParams())
		})

		convey.Convey("Then the duration limits span ten to thirty seconds", func() {
			lo, hi := cfg.DurationLimits()
			convey.So(lo, convey.ShouldEqual, 10*time.Second)
			convey.So(hi, convey.ShouldEqual, 30*time.Second)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with a single invalid field", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"duration too short", func(c *config.Config) { c.DurationS = 5 }},
			{"inverted bounds", func(c *config.Config) { c.MinDurationS, c.MaxDurationS = 30, 10 }},
			{"negative countdown", func(c *config.Config) { c.CountdownMS = -1 }},
			{"frame rate zero", func(c *config.Config) { c.FrameRate = 0 }},
			{"frame rate too high", func(c *config.Config) { c.FrameRate = 120 }},
			{"inverted bpm band", func(c *config.Config) { c.MinBPM, c.MaxBPM = 180, 40 }},
			{"brightness window", func(c *config.Config) { c.MinBrightness = 250 }},
			{"negative red dominance", func(c *config.Config) { c.MinRedDominance = -1 }},
			{"unknown smoothing", func(c *config.Config) { c.Smoothing = "kalman" }},
			{"threshold above 1", func(c *config.Config) { c.PeakThreshold = 1.5 }},
			{"empty report queue", func(c *config.Config) { c.ReportQueueSize = 0 }},
		}

		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)

			convey.Convey("Then "+tc.name+" is rejected", func() {
				convey.So(cfg.Validate(), convey.ShouldWrap, config.ErrInvalidConfig)
			})
		}
	})
}
