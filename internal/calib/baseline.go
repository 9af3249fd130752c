package calib

import (
	"github.com/msardana/leanplay/internal/sensor"
)

// Strategy selects how the backward baseline is constructed.
type Strategy string

const (
	// StrategyAsymmetric copies the front channels of the backward baseline
	// from the neutral baseline; only the heel channel is the true
	// backward-phase average. It assumes the front pads do not change between
	// neutral and backward stance.
	StrategyAsymmetric Strategy = "asymmetric"
	// StrategySymmetric uses all four independently measured backward-phase
	// averages.
	StrategySymmetric Strategy = "symmetric"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	return s == StrategyAsymmetric || s == StrategySymmetric
}

// Vector is a per-channel averaged reading.
type Vector [sensor.ChannelCount]float64

// Feature reduces a vector to the scalar used for classification:
// mean of the three front channels minus the heel channel.
func Feature(v Vector) float64 {
	front := (v[0] + v[1] + v[2]) / 3
	return front - v[3]
}

// FeatureOf computes the feature of a live sample.
func FeatureOf(s sensor.Sample) float64 {
	var v Vector
	for i, c := range s.Channels {
		v[i] = float64(c)
	}
	return Feature(v)
}

// Opacity maps a ratio to the continuous visual intensity shown by the UI.
// The range is [0.2, 0.9].
func Opacity(ratio float64) float64 {
	return 0.2 + 0.7*ratio
}

// Accumulator is the per-phase running sum. It is owned exclusively by the
// calibration machine and reset when its phase's baseline is computed.
type Accumulator struct {
	sums  [sensor.ChannelCount]int64
	count int
}

// Add accumulates one sample channel-wise.
func (a *Accumulator) Add(s sensor.Sample) {
	for i, c := range s.Channels {
		a.sums[i] += int64(c)
	}
	a.count++
}

// Count returns the number of accumulated samples.
func (a *Accumulator) Count() int {
	return a.count
}

// Mean returns the per-channel mean. Count must be > 0.
func (a *Accumulator) Mean() Vector {
	var v Vector
	n := float64(a.count)
	for i, sum := range a.sums {
		v[i] = float64(sum) / n
	}
	return v
}

// Reset zeroes the accumulator.
func (a *Accumulator) Reset() {
	*a = Accumulator{}
}

// Baselines holds the completed calibration baselines of one chain. Baselines
// are immutable once stored and cleared only on calibration reset.
type Baselines struct {
	neutral  Vector
	forward  Vector
	backward Vector

	hasNeutral  bool
	hasForward  bool
	hasBackward bool
}

// Store records the baseline for a completed phase. For the backward phase the
// given strategy decides whether the front channels are replaced by the
// neutral baseline's front channels.
func (b *Baselines) Store(phase Phase, mean Vector, strategy Strategy) {
	switch phase {
	case PhaseNeutral:
		b.neutral = mean
		b.hasNeutral = true
	case PhaseForward:
		b.forward = mean
		b.hasForward = true
	case PhaseBackward:
		if strategy == StrategyAsymmetric && b.hasNeutral {
			mean[0] = b.neutral[0]
			mean[1] = b.neutral[1]
			mean[2] = b.neutral[2]
		}
		b.backward = mean
		b.hasBackward = true
	}
}

// Get returns the stored baseline for a phase, if present.
func (b *Baselines) Get(phase Phase) (Vector, bool) {
	switch phase {
	case PhaseNeutral:
		return b.neutral, b.hasNeutral
	case PhaseForward:
		return b.forward, b.hasForward
	case PhaseBackward:
		return b.backward, b.hasBackward
	default:
		return Vector{}, false
	}
}

// Complete reports whether all three baselines are present.
func (b *Baselines) Complete() bool {
	return b.hasNeutral && b.hasForward && b.hasBackward
}

// Clear drops all baselines.
func (b *Baselines) Clear() {
	*b = Baselines{}
}
