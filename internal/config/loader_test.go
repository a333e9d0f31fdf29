package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/vitalcam/internal/config"
	"github.com/okian/vitalcam/internal/domain/ppg"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DurationS, convey.ShouldEqual, 30)
				convey.So(cfg.ReportURL, convey.ShouldBeEmpty)
				convey.So(cfg.NATSURL, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("VITALCAM_ADDR", ":8080")
			_ = os.Setenv("VITALCAM_DURATION_S", "15")
			_ = os.Setenv("VITALCAM_SMOOTHING", "high-pass")
			_ = os.Setenv("VITALCAM_REFRACTORY_MS", "250")
			_ = os.Setenv("VITALCAM_SMOOTHING_MS", "150")
			_ = os.Setenv("VITALCAM_MIN_RED_DOMINANCE", "0")
			_ = os.Setenv("VITALCAM_REPORT_URL", "http://localhost:3000")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Duration(), convey.ShouldEqual, 15*time.Second)
				convey.So(cfg.ReportURL, convey.ShouldEqual, "http://localhost:3000")

				p := cfg.EstimatorParams()
				convey.So(p.Smoothing, convey.ShouldEqual, ppg.SmoothingHighPass)
				convey.So(p.Refractory, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(p.SmoothingSpan, convey.ShouldEqual, 150*time.Millisecond)

				applied := ppg.New(ppg.WithParams(p)).Params()
				convey.So(applied.MinRedDominance, convey.ShouldEqual, 0.0)
				convey.So(applied.SmoothingSpan, convey.ShouldEqual, 150*time.Millisecond)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
countdown_ms: 1000
duration_s: 20
frame_rate: 24
min_bpm: 45
max_bpm: 170
nats_url: "nats://localhost:4222"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("VITALCAM_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Countdown(), convey.ShouldEqual, time.Second)
				convey.So(cfg.DurationS, convey.ShouldEqual, 20)
				convey.So(cfg.FrameRate, convey.ShouldEqual, 24)
				convey.So(cfg.MinBPM, convey.ShouldEqual, 45)
				convey.So(cfg.MaxBPM, convey.ShouldEqual, 170)
				convey.So(cfg.NATSURL, convey.ShouldEqual, "nats://localhost:4222")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nframe_rate: 24\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("VITALCAM_CONFIG", tmpFile)
			_ = os.Setenv("VITALCAM_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.FrameRate, convey.ShouldEqual, 24)
			})
		})

		convey.Convey("When a dotenv file is named", func() {
			dir := os.TempDir()
			path := filepath.Join(dir, "vitalcam-test.env")
			convey.So(os.WriteFile(path, []byte("VITALCAM_DEVICE=laptop-cam\nVITALCAM_ADDR=:7070\n"), 0o600), convey.ShouldBeNil)
			defer func() { _ = os.Remove(path) }()
			_ = os.Setenv("VITALCAM_DOTENV", path)
			_ = os.Setenv("VITALCAM_ADDR", ":6060")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills unset variables without overriding the process env", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Device, convey.ShouldEqual, "laptop-cam")
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
			})
		})

		convey.Convey("When the named dotenv file is missing", func() {
			_ = os.Setenv("VITALCAM_DOTENV", filepath.Join(os.TempDir(), "does-not-exist.env"))

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
			})
		})

		convey.Convey("When the config file is missing", func() {
			_ = os.Setenv("VITALCAM_CONFIG", filepath.Join(os.TempDir(), "does-not-exist.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
			})
		})

		convey.Convey("When the YAML is invalid", func() {
			tmpFile := createTempConfigFile("addr: [unterminated\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("VITALCAM_CONFIG", tmpFile)

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
			})
		})

		convey.Convey("When a loaded value fails validation", func() {
			_ = os.Setenv("VITALCAM_DURATION_S", "90")

			_, err := config.Load(ctx)

			convey.Convey("Then the validation error is returned", func() {
				convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
			})
		})
	})
}

// Helper functions

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "vitalcam-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = tmpFile.Close() }()

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}
