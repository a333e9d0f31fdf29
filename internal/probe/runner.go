package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/vitalcam/internal/adapters/capture"
	"github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	outputPermission    = 0600
)

const (
	sourceCamera = "camera"
	writeWait    = time.Second
	// outcomeSlack is added to countdown and duration while waiting for the outcome.
	outcomeSlack = 30 * time.Second
)

// Run starts a camera session, streams synthetic frames and waits for
// the outcome. The returned stats are filled as far as the run got.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("probe")

	log.Info(ctx, "starting vitalcam probe",
		logger.String("baseURL", config.BaseURL),
		logger.Duration("duration", config.Duration),
		logger.Int("fps", config.FrameRate),
		logger.Float64("bpm", config.BPM),
	)

	client := newHTTPClient(config.BaseURL, config.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	log.Info(ctx, "service is healthy")

	conn, err := client.DialEvents(ctx)
	if err != nil {
		return stats, err
	}
	defer func() { _ = conn.Close() }()

	id, err := client.StartSession(ctx, startRequest{
		Source:     sourceCamera,
		DurationS:  config.Duration.Seconds(),
		CountdownS: config.Countdown.Seconds(),
		FrameRate:  config.FrameRate,
	})
	if err != nil {
		return stats, err
	}
	stats.SessionID = id
	log.Info(ctx, "session started", logger.String("session_id", id))

	streamCtx, stopStream := context.WithCancel(ctx)
	var (
		wg   sync.WaitGroup
		sent atomic.Int64
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		streamFrames(streamCtx, conn, config, &sent)
	}()

	outcome, err := awaitOutcome(ctx, conn, id, config, stats, log)
	stopStream()
	wg.Wait()
	stats.FramesSent = int(sent.Load())
	if err != nil {
		_ = client.StopSession(context.WithoutCancel(ctx))
		return stats, err
	}
	stats.Outcome = outcome
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	if config.OutputFile != "" {
		if err := saveOutcome(ctx, config.OutputFile, outcome); err != nil {
			log.Warn(ctx, "failed to save outcome", logger.Error(err))
		}
	}
	displayFinalStats(ctx, log, stats)

	if err := Verify(config, outcome); err != nil {
		return stats, err
	}
	log.Info(ctx, "probe completed successfully")
	return stats, nil
}

// streamFrames sends one generated frame per frame period until ctx ends.
func streamFrames(ctx context.Context, conn *websocket.Conn, config *Config, sent *atomic.Int64) {
	fps := max(config.FrameRate, 1)
	gen := capture.NewGenerator(time.Now(), float64(fps), config.BPM, capture.DefaultSyntheticAmplitude, config.Noise, time.Now().UnixNano())
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f := gen.Next()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, capture.EncodeFrame(f.Image)); err != nil {
				return
			}
			sent.Add(1)
		}
	}
}

// awaitOutcome reads events until the outcome of session id arrives.
func awaitOutcome(ctx context.Context, conn *websocket.Conn, id string, config *Config, stats *Stats, log logger.Logger) (model.Outcome, error) {
	deadline := time.Now().Add(config.Countdown + config.Duration + outcomeSlack)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	for {
		if err := ctx.Err(); err != nil {
			return model.Outcome{}, err
		}
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			return model.Outcome{}, fmt.Errorf("read event: %w", err)
		}
		switch ev.Type {
		case "progress":
			stats.ProgressEvents++
			if config.Verbose {
				var p model.Progress
				if json.Unmarshal(ev.Data, &p) == nil {
					log.Info(ctx, "progress",
						logger.String("phase", string(p.Phase)),
						logger.Float64("fraction", p.Fraction),
						logger.String("quality", string(p.Quality)),
						logger.Bool("contact", p.Contact),
					)
				}
			}
		case "error":
			stats.FramesRejected++
			log.Debug(ctx, "frame rejected", logger.String("detail", string(ev.Data)))
		case "stopped":
			return model.Outcome{}, fmt.Errorf("session %s was stopped", id)
		case "outcome":
			var o model.Outcome
			if err := json.Unmarshal(ev.Data, &o); err != nil {
				return model.Outcome{}, fmt.Errorf("decode outcome: %w", err)
			}
			if o.SessionID == id {
				return o, nil
			}
		}
	}
}

// saveOutcome writes the outcome as indented JSON.
func saveOutcome(ctx context.Context, filename string, o model.Outcome) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	b, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	if err := os.WriteFile(filename, append(b, '\n'), outputPermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "outcome saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	fields := []logger.Field{
		logger.String("sessionID", stats.SessionID),
		logger.Int("framesSent", stats.FramesSent),
		logger.Int("framesRejected", stats.FramesRejected),
		logger.Int("progressEvents", stats.ProgressEvents),
		logger.Int("samples", stats.Outcome.Samples),
		logger.Int("contactSamples", stats.Outcome.ContactSamples),
		logger.String("duration", stats.Duration.String()),
	}
	if e := stats.Outcome.Estimate; e != nil {
		fields = append(fields, logger.Int("bpm", e.BPM), logger.String("quality", string(e.Quality)))
	} else {
		fields = append(fields, logger.String("reason", stats.Outcome.Reason))
	}
	log.Info(ctx, "final statistics", fields...)
}
