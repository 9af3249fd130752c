// Package playback maps classified lean directions and the gaze state onto a
// media transport: playback mode (rate, mute, rewind seeking) and volume.
package playback

import "time"

// Mode is the playback mode derived from the steering direction.
type Mode int

const (
	ModeNormal Mode = iota
	ModeFastForward
	ModeRewind
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeFastForward:
		return "fast_forward"
	case ModeRewind:
		return "rewind"
	default:
		return "normal"
	}
}

// Transport is the abstract media sink driven by the controller.
type Transport interface {
	// SetRate sets the playback rate. Negative rates request reverse
	// playback and are only valid when SupportsReverse reports true.
	SetRate(rate float64) error
	// SetMuted mutes or unmutes audio.
	SetMuted(muted bool) error
	// SetVolume sets the volume in [0,1]; implementations clamp.
	SetVolume(volume float64) error
	// Seek jumps to an absolute position.
	Seek(to time.Duration) error
	// Position returns the current playback position.
	Position() (time.Duration, error)
	// SupportsReverse reports whether negative-rate playback works. When it
	// does not, the controller falls back to discrete backward seeking.
	SupportsReverse() bool
}
