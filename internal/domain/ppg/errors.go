package ppg

import (
	"errors"
	"fmt"
)

// Sentinel kinds for analysis failures.
var (
	ErrInsufficientSignal = errors.New("insufficient signal")
	ErrOutOfRange         = errors.New("heart rate out of range")
)

// Human-readable failure reasons.
const (
	ReasonInsufficientSamples   = "insufficient samples"
	ReasonNoFinger              = "no finger detected"
	ReasonWeakSignal            = "weak signal"
	ReasonInsufficientPeaks     = "insufficient peaks"
	ReasonInsufficientIntervals = "insufficient intervals"
	ReasonOutOfRange            = "heart rate out of range"
)

// AnalysisError is returned when a recording cannot produce an estimate.
// Kind is one of the sentinel errors above and Reason is meant for display.
type AnalysisError struct {
	Kind   error
	Reason string
	Detail string
}

func (e *AnalysisError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("ppg: %s: %v", e.Reason, e.Kind)
	}
	return fmt.Sprintf("ppg: %s (%s): %v", e.Reason, e.Detail, e.Kind)
}

func (e *AnalysisError) Unwrap() error { return e.Kind }

func insufficient(reason, detail string) error {
	return &AnalysisError{Kind: ErrInsufficientSignal, Reason: reason, Detail: detail}
}

// Reason extracts the display reason from an analysis error, falling back
// to the error text for anything else.
func Reason(err error) string {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
