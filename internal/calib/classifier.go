package calib

import (
	"math"

	"github.com/msardana/leanplay/internal/sensor"
)

// epsilon guards near-zero denominators from degenerate calibrations where the
// forward or backward baseline barely differs from neutral.
const epsilon = 1e-6

// DefaultFullThreshold is the ratio at which a direction is considered
// triggered. The classifier is a near-full-deflection detector with a wide
// neutral dead zone, not a proportional one.
const DefaultFullThreshold = 0.99

// Ratios is the normalized classification output for one sample. Both values
// are in [0,1] and at most one is nonzero.
type Ratios struct {
	Forward  float64
	Backward float64
}

// clamp01 clamps x to [0,1].
func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// Classify maps a live sample to forward/backward ratios against the stored
// baselines. It reports ok=false until all three baselines are present.
func Classify(b *Baselines, s sensor.Sample) (Ratios, bool) {
	if !b.Complete() {
		return Ratios{}, false
	}

	fNeutral := Feature(b.neutral)
	fForward := Feature(b.forward)
	fBackward := Feature(b.backward)
	fCurrent := FeatureOf(s)

	var r Ratios
	if fCurrent >= fNeutral {
		denom := math.Max(fForward-fNeutral, epsilon)
		r.Forward = clamp01((fCurrent - fNeutral) / denom)
	} else {
		denom := math.Max(fNeutral-fBackward, epsilon)
		r.Backward = clamp01((fNeutral - fCurrent) / denom)
	}
	return r, true
}

// DirectionDetector thresholds ratios into a discrete direction and reports
// edge-triggered changes.
type DirectionDetector struct {
	fullThreshold float64
	current       Direction
}

// NewDirectionDetector creates a detector with the given trigger threshold.
// A threshold <= 0 selects DefaultFullThreshold.
func NewDirectionDetector(fullThreshold float64) *DirectionDetector {
	if fullThreshold <= 0 {
		fullThreshold = DefaultFullThreshold
	}
	return &DirectionDetector{fullThreshold: fullThreshold}
}

// Current returns the last classified direction.
func (d *DirectionDetector) Current() Direction {
	return d.current
}

// Update classifies the ratios and reports whether the direction changed.
func (d *DirectionDetector) Update(r Ratios) (Direction, bool) {
	next := DirectionNeutral
	switch {
	case r.Forward >= d.fullThreshold:
		next = DirectionForward
	case r.Backward >= d.fullThreshold:
		next = DirectionBackward
	}

	if next == d.current {
		return d.current, false
	}
	d.current = next
	return d.current, true
}

// Reset returns the detector to neutral without emitting a change.
func (d *DirectionDetector) Reset() {
	d.current = DirectionNeutral
}
