// Package calib implements the sensor calibration and directional-intent
// classification pipeline: the per-chain calibration state machine, baseline
// storage, and the ratio/direction classifier fed by live samples.
package calib

// Phase is the calibration phase of a chain. Phases are strictly sequential;
// only an explicit calibration restart re-enters Neutral.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseNeutral
	PhaseForward
	PhaseBackward
	PhaseDone
)

// String returns the wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseNeutral:
		return "neutral"
	case PhaseForward:
		return "forward"
	case PhaseBackward:
		return "backward"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Accumulating reports whether samples arriving in this phase are added to
// the phase accumulator.
func (p Phase) Accumulating() bool {
	return p == PhaseNeutral || p == PhaseForward || p == PhaseBackward
}

// next returns the phase that follows p in the calibration sequence.
func (p Phase) next() Phase {
	switch p {
	case PhaseNeutral:
		return PhaseForward
	case PhaseForward:
		return PhaseBackward
	case PhaseBackward:
		return PhaseDone
	default:
		return p
	}
}

// Direction is the discrete classified lean direction of a chain.
type Direction int

const (
	DirectionNeutral Direction = iota
	DirectionForward
	DirectionBackward
)

// String returns the wire name of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	default:
		return "neutral"
	}
}

// ParseDirection maps a wire name back to a Direction. Unknown names map to
// neutral.
func ParseDirection(s string) Direction {
	switch s {
	case "forward":
		return DirectionForward
	case "backward":
		return DirectionBackward
	default:
		return DirectionNeutral
	}
}
