package model

import "time"

// Phase is the lifecycle state of a measurement session.
type Phase string

// Session phases.
const (
	PhaseIdle      Phase = "idle"
	PhaseCountdown Phase = "countdown"
	PhaseRecording Phase = "recording"
	PhaseAnalyzing Phase = "analyzing"
	PhaseResult    Phase = "result"
	PhaseFailed    Phase = "failed"
)

// Active reports whether the phase holds a capture source.
func (p Phase) Active() bool {
	switch p {
	case PhaseCountdown, PhaseRecording, PhaseAnalyzing:
		return true
	default:
		return false
	}
}

// Progress is emitted periodically while a session is active.
type Progress struct {
	SessionID string  `json:"session_id"`
	Phase     Phase   `json:"phase"`
	Fraction  float64 `json:"fraction"`
	Quality   Quality `json:"quality"`
	Contact   bool    `json:"contact"`
	Samples   int     `json:"samples"`
}

// Outcome is the terminal event of a session. Exactly one of Estimate
// and Failed is set.
type Outcome struct {
	SessionID      string    `json:"session_id"`
	Source         string    `json:"source"`
	Estimate       *Estimate `json:"estimate,omitempty"`
	Failed         bool      `json:"failed"`
	Reason         string    `json:"reason,omitempty"`
	Err            error     `json:"-"`
	Samples        int       `json:"samples"`
	ContactSamples int       `json:"contact_samples"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Reading is the report sent to downstream consumers for a successful session.
type Reading struct {
	SessionID     string    `json:"session_id"`
	HeartRate     int       `json:"heart_rate"`
	Method        string    `json:"method"`
	SignalQuality Quality   `json:"signal_quality"`
	Device        string    `json:"device,omitempty"`
	MeasuredAt    time.Time `json:"measured_at"`
}

// ReadingFrom converts a successful outcome into a Reading.
// ok is false for failed outcomes.
func ReadingFrom(o Outcome, device string) (Reading, bool) {
	if o.Failed || o.Estimate == nil {
		return Reading{}, false
	}
	return Reading{
		SessionID:     o.SessionID,
		HeartRate:     o.Estimate.BPM,
		Method:        o.Estimate.Method,
		SignalQuality: o.Estimate.Quality,
		Device:        device,
		MeasuredAt:    o.CompletedAt,
	}, true
}
