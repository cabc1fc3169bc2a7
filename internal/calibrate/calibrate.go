// Package calibrate derives the activity threshold from the environment and
// persists it for the capture loop.
package calibrate

import (
	"errors"
	"fmt"
	"time"
)

// Derivation selects how the threshold is positioned between the baseline and
// trigger statistics.
type Derivation string

const (
	// DerivationMidpoint places the threshold halfway between baseline and
	// trigger levels.
	DerivationMidpoint Derivation = "midpoint"
	// DerivationScaled places the threshold at baseline times a safety
	// factor, capped below the trigger level.
	DerivationScaled Derivation = "scaled"
)

// Calibration failure conditions.
var (
	// ErrTriggerTooQuiet is returned when the trigger statistic does not
	// exceed the baseline by the required margin.
	ErrTriggerTooQuiet = errors.New("trigger level indistinguishable from baseline")
	// ErrNoSamples is returned when a phase collected no volume samples.
	ErrNoSamples = errors.New("calibration phase collected no samples")
)

// Threshold is a completed calibration result. Immutable once written; a new
// calibration replaces it wholesale.
type Threshold struct {
	Baseline     float64   `json:"baseline"`
	Trigger      float64   `json:"trigger"`
	Threshold    float64   `json:"threshold"`
	Metric       string    `json:"metric"`
	CalibratedAt time.Time `json:"calibrated_at"`
}

// Options tune the derivation. Zero values select the defaults.
type Options struct {
	Derivation  Derivation
	ScaleFactor float64 // baseline multiplier for DerivationScaled
	MinRatio    float64 // trigger must be at least baseline * MinRatio
}

func (o Options) withDefaults() Options {
	if o.Derivation == "" {
		o.Derivation = DerivationMidpoint
	}
	if o.ScaleFactor <= 1 {
		o.ScaleFactor = 5
	}
	if o.MinRatio <= 1 {
		o.MinRatio = 3
	}
	return o
}

// Derive computes a Threshold from the baseline-phase and trigger-phase
// volume samples. It is pure: rejection mutates nothing.
func Derive(baseline, trigger []float64, opts Options) (*Threshold, error) {
	if len(baseline) == 0 || len(trigger) == 0 {
		return nil, ErrNoSamples
	}
	opts = opts.withDefaults()

	base := mean(baseline)
	trig := mean(trigger)

	if trig <= 0 || trig < base*opts.MinRatio {
		return nil, fmt.Errorf("%w: baseline %.6f, trigger %.6f, required ratio %.1f",
			ErrTriggerTooQuiet, base, trig, opts.MinRatio)
	}

	var threshold float64
	switch opts.Derivation {
	case DerivationScaled:
		threshold = base * opts.ScaleFactor
		if threshold >= trig || threshold <= base {
			// Safety factor landed outside (baseline, trigger); fall back
			// to the midpoint so both phases classify correctly.
			threshold = base + (trig-base)/2
		}
	default:
		threshold = base + (trig-base)/2
	}

	return &Threshold{
		Baseline:     base,
		Trigger:      trig,
		Threshold:    threshold,
		CalibratedAt: time.Now(),
	}, nil
}

func mean(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
