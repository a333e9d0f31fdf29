// Package report delivers heart-rate readings to downstream systems.
package report

import "github.com/okian/vitalcam/internal/domain/model"

// Payload is the wire body of a reading.
type Payload struct {
	SessionID     string `json:"session_id,omitempty"`
	HeartRate     int    `json:"heart_rate"`
	Method        string `json:"method"`
	SignalQuality string `json:"signal_quality"`
	Device        string `json:"device,omitempty"`
	MeasuredAt    string `json:"measured_at,omitempty"`
}

// NewPayload converts a reading to its wire body.
func NewPayload(r model.Reading) Payload {
	p := Payload{
		SessionID:     r.SessionID,
		HeartRate:     r.HeartRate,
		Method:        r.Method,
		SignalQuality: string(r.SignalQuality),
		Device:        r.Device,
	}
	if !r.MeasuredAt.IsZero() {
		p.MeasuredAt = r.MeasuredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	return p
}
