package probe

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/vitalcam/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to the console and, when logFile is
// set, to that file as well.
func SetupLogging(logFile string, verbose bool) error {
	level := "info"
	if verbose {
		level = "debug"
	}
	var out io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.Init(logger.WithOutput(out), logger.WithLevel(level)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile), logger.String("started", time.Now().Format(time.RFC3339)))
	}
	return nil
}

// ShowHelp prints usage information for the probe.
func ShowHelp() {
	os.Stdout.WriteString(`vitalcam probe
==============

Starts a camera session on a running service, streams synthetic fingertip
frames over the events WebSocket and checks the reported heart rate.

Usage:
  go run ./cmd/ppg-probe [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -duration duration
        Recording duration to request (default 10s)
  -countdown duration
        Countdown to request (default 1s)
  -fps int
        Frames streamed per second (default 30)
  -bpm float
        Simulated heart rate (default 72)
  -noise float
        Green channel noise amplitude (default 1)
  -tolerance int
        Accepted BPM error (default 5)
  -timeout duration
        HTTP request timeout (default 10s)
  -output string
        Write the outcome as JSON to this file
  -log string
        Also write logs to this file
  -verbose
        Log every progress event
  -help
        Show this help message

Examples:
  go run ./cmd/ppg-probe -bpm 90 -duration 15s
`)
}
