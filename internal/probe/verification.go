package probe

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/vitalcam/internal/domain/model"
)

// ErrVerification marks an outcome that does not match the simulated signal.
var ErrVerification = errors.New("verification failed")

// Verify checks that o is a successful estimate within the configured
// tolerance of the simulated heart rate.
func Verify(config *Config, o model.Outcome) error {
	if o.Failed || o.Estimate == nil {
		return fmt.Errorf("%w: session failed: %s", ErrVerification, o.Reason)
	}
	want := int(math.Round(config.BPM))
	diff := o.Estimate.BPM - want
	if diff < 0 {
		diff = -diff
	}
	if diff > config.Tolerance {
		return fmt.Errorf("%w: estimated %d bpm, simulated %d (tolerance %d)", ErrVerification, o.Estimate.BPM, want, config.Tolerance)
	}
	return nil
}
