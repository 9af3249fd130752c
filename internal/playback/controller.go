package playback

import (
	"log"
	"sync"
	"time"

	"github.com/msardana/leanplay/internal/calib"
	"github.com/msardana/leanplay/internal/event"
)

// Controller defaults.
const (
	// DefaultTickInterval debounces rate changes against bursty sensor
	// input: the mode is recomputed on this fixed cadence, not per sample.
	DefaultTickInterval = 250 * time.Millisecond
	// DefaultFastForwardRate is the forward playback rate.
	DefaultFastForwardRate = 2.0
	// DefaultRewindStep is the media time stepped back per tick when the
	// transport cannot play in reverse.
	DefaultRewindStep = time.Second
	// DefaultVolumeStep is the volume nudge per tick while the volume chain
	// is deflected.
	DefaultVolumeStep = 0.05
)

// ControllerConfig tunes the playback controller.
type ControllerConfig struct {
	Tick            time.Duration
	FastForwardRate float64
	RewindStep      time.Duration
	VolumeStep      float64
	// GazeGated forces Normal mode whenever the user is not looking at the
	// screen.
	GazeGated bool
}

func (c ControllerConfig) tick() time.Duration {
	if c.Tick <= 0 {
		return DefaultTickInterval
	}
	return c.Tick
}

func (c ControllerConfig) fastForwardRate() float64 {
	if c.FastForwardRate <= 0 {
		return DefaultFastForwardRate
	}
	return c.FastForwardRate
}

func (c ControllerConfig) rewindStep() time.Duration {
	if c.RewindStep <= 0 {
		return DefaultRewindStep
	}
	return c.RewindStep
}

func (c ControllerConfig) volumeStep() float64 {
	if c.VolumeStep <= 0 {
		return DefaultVolumeStep
	}
	return c.VolumeStep
}

// Controller is the playback-mode state machine. It holds the latest inputs
// (steering direction, volume direction, gaze) and applies them to the
// transport on its own tick, touching the transport only when something
// actually changes.
type Controller struct {
	config    ControllerConfig
	transport Transport
	bus       *event.Bus

	mu       sync.Mutex
	steering calib.Direction
	volume   calib.Direction
	looking  bool
	enabled  bool

	mode    Mode
	applied bool
	// level shadows the transport volume so nudges have a base to step
	// from; the transport clamps independently.
	level float64

	stopCh chan struct{}
}

// NewController creates a controller for the given transport publishing mode
// changes to the bus.
func NewController(config ControllerConfig, transport Transport, bus *event.Bus) *Controller {
	return &Controller{
		config:    config,
		transport: transport,
		bus:       bus,
		enabled:   true,
		level:     1.0,
	}
}

// SetSteeringDirection records the latest steering-chain direction.
func (c *Controller) SetSteeringDirection(d calib.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steering = d
}

// SetVolumeDirection records the latest volume-chain direction.
func (c *Controller) SetVolumeDirection(d calib.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = d
}

// SetLooking records the latest smoothed gaze state.
func (c *Controller) SetLooking(looking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.looking = looking
}

// SetEnabled pauses or resumes control output. While disabled the controller
// holds the transport at Normal.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// Enabled reports whether control output is active.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Mode returns the last applied playback mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Start begins the control tick loop.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopCh != nil {
		return
	}
	c.stopCh = make(chan struct{})
	go c.run(c.stopCh)
}

// Stop halts the control tick loop.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
}

func (c *Controller) run(stopCh chan struct{}) {
	ticker := time.NewTicker(c.config.tick())
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick recomputes the playback mode from the latest inputs and applies it.
// It is called by the tick loop and directly by tests.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	mode := c.desiredMode()
	if mode != c.mode || !c.applied {
		c.apply(mode)
	}

	// Rewind without reverse support steps backwards every tick, not just
	// on the transition.
	if mode == ModeRewind && !c.transport.SupportsReverse() {
		c.stepBack()
	}

	c.nudgeVolume()
}

// desiredMode derives the mode from steering direction and gaze gating.
func (c *Controller) desiredMode() Mode {
	if !c.enabled {
		return ModeNormal
	}
	if c.config.GazeGated && !c.looking {
		return ModeNormal
	}

	switch c.steering {
	case calib.DirectionForward:
		return ModeFastForward
	case calib.DirectionBackward:
		return ModeRewind
	default:
		return ModeNormal
	}
}

// apply pushes the mode's rate and mute state to the transport.
func (c *Controller) apply(mode Mode) {
	switch mode {
	case ModeNormal:
		c.call(c.transport.SetMuted(false))
		c.call(c.transport.SetRate(1.0))
	case ModeFastForward:
		c.call(c.transport.SetMuted(false))
		c.call(c.transport.SetRate(c.config.fastForwardRate()))
	case ModeRewind:
		// Reverse audio is not rendered.
		c.call(c.transport.SetMuted(true))
		if c.transport.SupportsReverse() {
			c.call(c.transport.SetRate(-1.0))
		} else {
			// Seek-stepping rewinds at the step rate; a rate left over
			// from fast-forward would skew the net backward speed.
			c.call(c.transport.SetRate(1.0))
		}
	}

	c.mode = mode
	c.applied = true
	c.bus.Publish(event.ModeChanged{Mode: mode.String()})
}

// stepBack issues one discrete backward seek, clamped at the start.
func (c *Controller) stepBack() {
	pos, err := c.transport.Position()
	if err != nil {
		log.Printf("playback: position query failed: %v", err)
		return
	}
	if pos == 0 {
		return
	}

	next := pos - c.config.rewindStep()
	if next < 0 {
		next = 0
	}
	c.call(c.transport.Seek(next))
}

// nudgeVolume steps the transport volume while the volume chain is deflected.
func (c *Controller) nudgeVolume() {
	if !c.enabled {
		return
	}
	if c.config.GazeGated && !c.looking {
		return
	}

	var next float64
	switch c.volume {
	case calib.DirectionForward:
		next = c.level + c.config.volumeStep()
	case calib.DirectionBackward:
		next = c.level - c.config.volumeStep()
	default:
		return
	}

	if next < 0 {
		next = 0
	}
	if next > 1 {
		next = 1
	}
	if next == c.level {
		return
	}

	c.level = next
	c.call(c.transport.SetVolume(next))
}

// call logs transport errors; control keeps running on a failing transport.
func (c *Controller) call(err error) {
	if err != nil {
		log.Printf("playback: transport call failed: %v", err)
	}
}
