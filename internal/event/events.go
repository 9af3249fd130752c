// Package event defines the typed state-change events emitted by the leanplay
// core and the bus that fans them out to the server, store and telemetry layers.
package event

import (
	"encoding/json"
	"fmt"
)

// Event is the marker interface implemented by all core events.
type Event interface {
	eventMarker()
}

// PhaseChanged is emitted when a chain's calibration phase advances, resets,
// or enters the awaiting-data condition (timer expired with no samples).
type PhaseChanged struct {
	Chain        string `json:"chain"`
	Phase        string `json:"phase"`
	AwaitingData bool   `json:"awaiting_data,omitempty"`
}

func (PhaseChanged) eventMarker() {}

// CountdownChanged carries the whole-second countdown published while a
// calibration phase timer is running.
type CountdownChanged struct {
	Chain   string `json:"chain"`
	Seconds int    `json:"seconds"`
}

func (CountdownChanged) eventMarker() {}

// BaselineReady is emitted once per completed calibration phase with the
// scalar feature of the stored baseline.
type BaselineReady struct {
	Chain   string  `json:"chain"`
	Phase   string  `json:"phase"`
	Feature float64 `json:"feature"`
}

func (BaselineReady) eventMarker() {}

// DirectionChanged is emitted only on direction transitions, never on
// steady-state repeats.
type DirectionChanged struct {
	Chain     string `json:"chain"`
	Direction string `json:"direction"`
}

func (DirectionChanged) eventMarker() {}

// RatioUpdated carries the classifier output for every post-calibration
// sample. At most one of Forward/Backward is nonzero.
type RatioUpdated struct {
	Chain    string  `json:"chain"`
	Forward  float64 `json:"forward"`
	Backward float64 `json:"backward"`
}

func (RatioUpdated) eventMarker() {}

// GazeChanged is emitted by the gaze smoother on smoothed transitions.
type GazeChanged struct {
	Looking bool `json:"looking"`
}

func (GazeChanged) eventMarker() {}

// ModeChanged is emitted when the playback controller applies a new mode.
type ModeChanged struct {
	Mode string `json:"mode"`
}

func (ModeChanged) eventMarker() {}

// SensorState is emitted on sensor channel connect and disconnect.
type SensorState struct {
	Chain     string `json:"chain"`
	Connected bool   `json:"connected"`
}

func (SensorState) eventMarker() {}

// Envelope wraps an event with a type discriminator for JSON transport
// (websocket clients, the session event log, MQTT).
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// TypeOf returns the wire discriminator for an event.
func TypeOf(e Event) string {
	switch e.(type) {
	case PhaseChanged:
		return "phase_changed"
	case CountdownChanged:
		return "countdown_changed"
	case BaselineReady:
		return "baseline_ready"
	case DirectionChanged:
		return "direction_changed"
	case RatioUpdated:
		return "ratio_updated"
	case GazeChanged:
		return "gaze_changed"
	case ModeChanged:
		return "mode_changed"
	case SensorState:
		return "sensor_state"
	default:
		return ""
	}
}

// Marshal serializes an event into a JSON envelope.
func Marshal(e Event) ([]byte, error) {
	typ := TypeOf(e)
	if typ == "" {
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", typ, err)
	}

	return json.Marshal(Envelope{Type: typ, Data: data})
}

// Unmarshal deserializes a JSON envelope into a concrete Event.
func Unmarshal(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "phase_changed":
		var e PhaseChanged
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal phase_changed: %w", err)
		}
		return e, nil
	case "countdown_changed":
		var e CountdownChanged
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal countdown_changed: %w", err)
		}
		return e, nil
	case "baseline_ready":
		var e BaselineReady
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal baseline_ready: %w", err)
		}
		return e, nil
	case "direction_changed":
		var e DirectionChanged
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal direction_changed: %w", err)
		}
		return e, nil
	case "ratio_updated":
		var e RatioUpdated
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal ratio_updated: %w", err)
		}
		return e, nil
	case "gaze_changed":
		var e GazeChanged
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal gaze_changed: %w", err)
		}
		return e, nil
	case "mode_changed":
		var e ModeChanged
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal mode_changed: %w", err)
		}
		return e, nil
	case "sensor_state":
		var e SensorState
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal sensor_state: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}
