// Package model contains domain models passed between layers.
package model

import (
	"image"
	"time"
)

// Frame is one camera image handed to a session.
type Frame struct {
	Image *image.RGBA
	At    time.Time // capture time; zero means stamp on arrival
}

// Sample is the colour summary of one frame, timestamped relative to
// the start of recording.
type Sample struct {
	At      time.Duration
	Red     float64
	Green   float64
	Blue    float64
	Contact bool // finger presence gate verdict
}

// Brightness is the mean of the three channels.
func (s Sample) Brightness() float64 {
	return (s.Red + s.Green + s.Blue) / 3
}

// RedDominance is how far red rises above the mean of green and blue.
func (s Sample) RedDominance() float64 {
	return s.Red - (s.Green+s.Blue)/2
}

// Quality classifies the recent pulsatile variation of the signal.
type Quality string

// Quality levels.
const (
	QualityUnknown Quality = "unknown"
	QualityPoor    Quality = "poor"
	QualityFair    Quality = "fair"
	QualityGood    Quality = "good"
)

// Method tags describing where an estimate came from.
const (
	MethodWebcam     = "ppg-webcam"
	MethodSimulation = "simulation"
)

// Estimate is a heart-rate result. It is produced once per session.
type Estimate struct {
	BPM       int     `json:"bpm"`
	Method    string  `json:"method"`
	Quality   Quality `json:"quality"`
	Peaks     int     `json:"peaks"`
	Intervals int     `json:"intervals"`
}
