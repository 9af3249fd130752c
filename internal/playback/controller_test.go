package playback

import (
	"math"
	"testing"
	"time"

	"github.com/msardana/leanplay/internal/calib"
	"github.com/msardana/leanplay/internal/event"
)

func newTestController(transport Transport, cfg ControllerConfig) (*Controller, chan event.Event) {
	bus := event.NewBus()
	sub := bus.Subscribe(64)
	return NewController(cfg, transport, bus), sub
}

func TestControllerFastForward(t *testing.T) {
	transport := NewMockTransport(false)
	c, _ := newTestController(transport, ControllerConfig{})

	c.SetSteeringDirection(calib.DirectionForward)
	c.Tick()

	if got := transport.Rate(); got != 2.0 {
		t.Errorf("expected rate 2.0, got %v", got)
	}
	if transport.Muted() {
		t.Error("expected unmuted in fast forward")
	}
	if c.Mode() != ModeFastForward {
		t.Errorf("expected mode fast_forward, got %s", c.Mode())
	}

	// Reapplying the same mode must not touch the transport.
	rate, mute, _, _ := transport.Calls()
	c.Tick()
	c.Tick()
	rate2, mute2, _, _ := transport.Calls()
	if rate2 != rate || mute2 != mute {
		t.Errorf("steady-state ticks touched the transport: rate %d->%d, mute %d->%d", rate, rate2, mute, mute2)
	}
}

func TestControllerRewindSeekFallback(t *testing.T) {
	transport := NewMockTransport(false)
	transport.SetPosition(3 * time.Second)
	c, _ := newTestController(transport, ControllerConfig{})

	c.SetSteeringDirection(calib.DirectionBackward)

	// Each tick steps one second back until the start of the media.
	c.Tick()
	if !transport.Muted() {
		t.Error("expected muted during rewind")
	}
	if pos, _ := transport.Position(); pos != 2*time.Second {
		t.Errorf("expected position 2s, got %v", pos)
	}

	c.Tick()
	c.Tick()
	if pos, _ := transport.Position(); pos != 0 {
		t.Errorf("expected position clamped at 0, got %v", pos)
	}

	// At the start there is nothing left to seek.
	_, _, _, seeks := transport.Calls()
	c.Tick()
	if _, _, _, after := transport.Calls(); after != seeks {
		t.Errorf("expected no seek at position 0, got %d -> %d", seeks, after)
	}
	if pos, _ := transport.Position(); pos != 0 {
		t.Errorf("expected position to stay 0, got %v", pos)
	}
}

func TestControllerRewindWithReverseSupport(t *testing.T) {
	transport := NewMockTransport(true)
	transport.SetPosition(10 * time.Second)
	c, _ := newTestController(transport, ControllerConfig{})

	c.SetSteeringDirection(calib.DirectionBackward)
	c.Tick()

	if got := transport.Rate(); got != -1.0 {
		t.Errorf("expected rate -1.0, got %v", got)
	}
	if !transport.Muted() {
		t.Error("expected muted during rewind")
	}
	if _, _, _, seeks := transport.Calls(); seeks != 0 {
		t.Errorf("expected no seek stepping with reverse support, got %d", seeks)
	}
}

func TestControllerReturnsToNormal(t *testing.T) {
	transport := NewMockTransport(false)
	c, _ := newTestController(transport, ControllerConfig{})

	c.SetSteeringDirection(calib.DirectionForward)
	c.Tick()
	c.SetSteeringDirection(calib.DirectionNeutral)
	c.Tick()

	if got := transport.Rate(); got != 1.0 {
		t.Errorf("expected rate 1.0 back in normal, got %v", got)
	}
	if transport.Muted() {
		t.Error("expected unmuted in normal")
	}
	if c.Mode() != ModeNormal {
		t.Errorf("expected mode normal, got %s", c.Mode())
	}
}

func TestControllerGazeGating(t *testing.T) {
	transport := NewMockTransport(false)
	c, _ := newTestController(transport, ControllerConfig{GazeGated: true})

	// Not looking: direction is overridden to Normal.
	c.SetSteeringDirection(calib.DirectionForward)
	c.Tick()
	if c.Mode() != ModeNormal {
		t.Errorf("expected normal while not looking, got %s", c.Mode())
	}
	if got := transport.Rate(); got != 1.0 {
		t.Errorf("expected rate 1.0 while not looking, got %v", got)
	}

	c.SetLooking(true)
	c.Tick()
	if c.Mode() != ModeFastForward {
		t.Errorf("expected fast_forward once looking, got %s", c.Mode())
	}
}

func TestControllerVolumeNudges(t *testing.T) {
	transport := NewMockTransport(false)
	c, _ := newTestController(transport, ControllerConfig{})

	// Volume starts at 1.0; nudging up is already clamped, no call.
	c.SetVolumeDirection(calib.DirectionForward)
	c.Tick()
	if _, _, volCalls, _ := transport.Calls(); volCalls != 0 {
		t.Errorf("expected no volume call at the ceiling, got %d", volCalls)
	}

	c.SetVolumeDirection(calib.DirectionBackward)
	c.Tick()
	c.Tick()
	if got := transport.Volume(); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("expected volume 0.9 after two down nudges, got %v", got)
	}

	c.SetVolumeDirection(calib.DirectionNeutral)
	_, _, volCalls, _ := transport.Calls()
	c.Tick()
	if _, _, after, _ := transport.Calls(); after != volCalls {
		t.Error("expected no volume call while neutral")
	}
}

func TestControllerDisabled(t *testing.T) {
	transport := NewMockTransport(false)
	c, _ := newTestController(transport, ControllerConfig{})

	c.SetEnabled(false)
	c.SetSteeringDirection(calib.DirectionForward)
	c.SetVolumeDirection(calib.DirectionBackward)
	c.Tick()

	if c.Mode() != ModeNormal {
		t.Errorf("expected normal while disabled, got %s", c.Mode())
	}
	if _, _, volCalls, _ := transport.Calls(); volCalls != 0 {
		t.Errorf("expected no volume nudges while disabled, got %d", volCalls)
	}
}

func TestControllerPublishesModeChanges(t *testing.T) {
	transport := NewMockTransport(false)
	bus := event.NewBus()
	sub := bus.Subscribe(64)
	c := NewController(ControllerConfig{}, transport, bus)

	c.SetSteeringDirection(calib.DirectionForward)
	c.Tick()
	c.Tick()

	var modes []string
	for len(sub) > 0 {
		if mc, ok := (<-sub).(event.ModeChanged); ok {
			modes = append(modes, mc.Mode)
		}
	}

	if len(modes) != 1 || modes[0] != "fast_forward" {
		t.Errorf("expected exactly one fast_forward mode event, got %v", modes)
	}
}

func TestControllerRewindFallbackResetsRate(t *testing.T) {
	transport := NewMockTransport(false)
	transport.SetPosition(30 * time.Second)
	c, _ := newTestController(transport, ControllerConfig{})

	c.SetSteeringDirection(calib.DirectionForward)
	c.Tick()
	if got := transport.Rate(); got != 2.0 {
		t.Fatalf("expected rate 2.0 in fast forward, got %v", got)
	}

	// Dropping straight into the seek-stepping rewind must not keep the
	// fast-forward rate; playback between seeks runs at normal speed.
	c.SetSteeringDirection(calib.DirectionBackward)
	c.Tick()

	if got := transport.Rate(); got != 1.0 {
		t.Errorf("expected rate 1.0 during seek-stepping rewind, got %v", got)
	}
	if !transport.Muted() {
		t.Error("expected muted during rewind")
	}
	if pos, _ := transport.Position(); pos != 29*time.Second {
		t.Errorf("expected one rewind step, got position %v", pos)
	}
}
