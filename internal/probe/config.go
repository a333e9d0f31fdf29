package probe

import (
	"encoding/json"
	"time"

	"github.com/okian/vitalcam/internal/domain/model"
)

// Config holds configuration for one probe run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Duration   time.Duration // Recording duration requested from the service
	Countdown  time.Duration // Countdown requested from the service
	FrameRate  int           // Frames streamed per second
	BPM        float64       // Simulated heart rate
	Noise      float64       // Green channel noise amplitude
	Tolerance  int           // Accepted |estimate - BPM|
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Optional file for the outcome as JSON
	Verbose    bool          // Log every progress event
}

// startRequest mirrors the body of POST /session.
type startRequest struct {
	Source     string  `json:"source"`
	DurationS  float64 `json:"duration_s"`
	CountdownS float64 `json:"countdown_s"`
	FrameRate  int     `json:"frame_rate"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
}

// event is the envelope received from /session/events.
type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Stats holds run statistics.
type Stats struct {
	SessionID      string
	FramesSent     int
	FramesRejected int
	ProgressEvents int
	Outcome        model.Outcome
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
