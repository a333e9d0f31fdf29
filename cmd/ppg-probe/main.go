package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/vitalcam/internal/probe"
)

// Default configuration constants.
const (
	defaultDuration     = 10 * time.Second
	defaultCountdown    = time.Second
	defaultFPS          = 30
	defaultBPM          = 72
	defaultNoise        = 1.0
	defaultTolerance    = 5
	defaultTimeout      = 10 * time.Second
	defaultProbeTimeout = 2 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		duration  = flag.Duration("duration", defaultDuration, "Recording duration to request")
		countdown = flag.Duration("countdown", defaultCountdown, "Countdown to request")
		fps       = flag.Int("fps", defaultFPS, "Frames streamed per second")
		bpm       = flag.Float64("bpm", defaultBPM, "Simulated heart rate")
		noise     = flag.Float64("noise", defaultNoise, "Green channel noise amplitude")
		tolerance = flag.Int("tolerance", defaultTolerance, "Accepted BPM error")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		output    = flag.String("output", "", "Write the outcome as JSON to this file")
		logFile   = flag.String("log", "", "Also write logs to this file")
		verbose   = flag.Bool("verbose", false, "Log every progress event")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		probe.ShowHelp()
		return
	}

	if err := probe.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultProbeTimeout)
	defer cancel()

	config := &probe.Config{
		BaseURL:    *baseURL,
		Duration:   *duration,
		Countdown:  *countdown,
		FrameRate:  *fps,
		BPM:        *bpm,
		Noise:      *noise,
		Tolerance:  *tolerance,
		Timeout:    *timeout,
		OutputFile: *output,
		Verbose:    *verbose,
	}

	if _, err := probe.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Probe failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
