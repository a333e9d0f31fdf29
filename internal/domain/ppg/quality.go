package ppg

import "github.com/okian/vitalcam/internal/domain/model"

// Quality classifies the green-channel variation of the most recent
// QualityWindow contact samples.
func (e *Estimator) Quality(samples []model.Sample) model.Quality {
	window := e.params.QualityWindow
	lo, hi := 0.0, 0.0
	n := 0
	for i := len(samples) - 1; i >= 0 && n < window; i-- {
		s := samples[i]
		if !s.Contact {
			continue
		}
		if n == 0 || s.Green < lo {
			lo = s.Green
		}
		if n == 0 || s.Green > hi {
			hi = s.Green
		}
		n++
	}
	if n < window {
		return model.QualityUnknown
	}
	return e.classify(hi - lo)
}

func (e *Estimator) classify(variation float64) model.Quality {
	switch {
	case variation > e.params.GoodVariation:
		return model.QualityGood
	case variation > e.params.FairVariation:
		return model.QualityFair
	default:
		return model.QualityPoor
	}
}
