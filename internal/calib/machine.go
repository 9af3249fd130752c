package calib

import (
	"math"
	"time"

	"github.com/msardana/leanplay/internal/event"
	"github.com/msardana/leanplay/internal/sensor"
)

// Default timing for the calibration state machine.
const (
	DefaultPhaseDuration = 3 * time.Second
	DefaultTick          = 100 * time.Millisecond
)

// Config parametrizes one chain's calibration machine.
type Config struct {
	// Chain names the pipeline ("steering" or "volume") in emitted events.
	Chain string
	// Strategy selects the backward-baseline construction.
	Strategy Strategy
	// PhaseDuration is the length of one calibration phase. Zero selects
	// DefaultPhaseDuration.
	PhaseDuration time.Duration
	// Tick is the phase timer period. Zero selects DefaultTick.
	Tick time.Duration
	// FullThreshold is the direction trigger threshold. Zero selects
	// DefaultFullThreshold.
	FullThreshold float64
}

func (c Config) phaseDuration() time.Duration {
	if c.PhaseDuration <= 0 {
		return DefaultPhaseDuration
	}
	return c.PhaseDuration
}

func (c Config) tick() time.Duration {
	if c.Tick <= 0 {
		return DefaultTick
	}
	return c.Tick
}

// Machine is the synchronous calibration state machine for one chain. It is
// not safe for concurrent use; the Engine serializes all access onto a single
// goroutine. The clock is passed into every time-dependent method so tests
// are deterministic.
type Machine struct {
	cfg Config

	phase        Phase
	running      bool
	startedAt    time.Time
	countdown    int
	awaitingData bool
	connected    bool

	accum     Accumulator
	baselines Baselines
	detector  *DirectionDetector
	ratios    Ratios
}

// NewMachine creates a machine in the NotStarted phase.
func NewMachine(cfg Config) *Machine {
	return &Machine{
		cfg:      cfg,
		phase:    PhaseNotStarted,
		detector: NewDirectionDetector(cfg.FullThreshold),
	}
}

// Phase returns the current calibration phase.
func (m *Machine) Phase() Phase { return m.phase }

// Running reports whether a phase timer is active.
func (m *Machine) Running() bool { return m.running }

// Countdown returns the last published whole-second countdown.
func (m *Machine) Countdown() int { return m.countdown }

// AwaitingData reports the stalled-completion condition: the phase timer
// expired but no samples were accumulated, so completion is held back until
// data arrives.
func (m *Machine) AwaitingData() bool { return m.awaitingData }

// Connected reports the sensor channel state.
func (m *Machine) Connected() bool { return m.connected }

// Direction returns the last classified direction.
func (m *Machine) Direction() Direction { return m.detector.Current() }

// Ratios returns the classifier output for the most recent sample.
func (m *Machine) Ratios() Ratios { return m.ratios }

// Baselines exposes the stored baselines for inspection.
func (m *Machine) Baselines() *Baselines { return &m.baselines }

// SetConnected records the sensor channel state. Disconnecting aborts any
// running phase and resets the machine to NotStarted so a reconnect can
// restart calibration from scratch.
func (m *Machine) SetConnected(connected bool) []event.Event {
	m.connected = connected
	if connected {
		return nil
	}

	m.running = false
	m.awaitingData = false
	m.accum.Reset()
	m.baselines.Clear()
	m.detector.Reset()
	m.ratios = Ratios{}
	m.phase = PhaseNotStarted
	return []event.Event{
		event.PhaseChanged{Chain: m.cfg.Chain, Phase: m.phase.String()},
	}
}

// StartCalibration resets all accumulators and baselines, cancels any running
// phase, and enters Neutral waiting for an explicit phase start.
func (m *Machine) StartCalibration() []event.Event {
	m.running = false
	m.awaitingData = false
	m.accum.Reset()
	m.baselines.Clear()
	m.detector.Reset()
	m.ratios = Ratios{}
	m.phase = PhaseNeutral
	m.countdown = int(math.Ceil(m.cfg.phaseDuration().Seconds()))

	return []event.Event{
		event.PhaseChanged{Chain: m.cfg.Chain, Phase: m.phase.String()},
		event.CountdownChanged{Chain: m.cfg.Chain, Seconds: m.countdown},
	}
}

// StartPhase begins the current phase's accumulation window. It is a silent
// no-op when the channel is disconnected, when there is no phase to run, or
// when the phase is already running (repeated UI taps).
func (m *Machine) StartPhase(now time.Time) (bool, []event.Event) {
	if !m.connected || !m.phase.Accumulating() || m.running {
		return false, nil
	}

	m.running = true
	m.awaitingData = false
	m.startedAt = now
	m.countdown = int(math.Ceil(m.cfg.phaseDuration().Seconds()))

	return true, []event.Event{
		event.CountdownChanged{Chain: m.cfg.Chain, Seconds: m.countdown},
	}
}

// Tick advances the phase timer. It publishes countdown updates and, once the
// phase duration has elapsed, attempts completion. done reports that the
// phase completed and the timer must be torn down.
func (m *Machine) Tick(now time.Time) (events []event.Event, done bool) {
	if !m.running {
		return nil, false
	}

	duration := m.cfg.phaseDuration()
	elapsed := now.Sub(m.startedAt)
	remaining := duration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	countdown := int(math.Ceil(remaining.Seconds()))
	if countdown != m.countdown {
		m.countdown = countdown
		events = append(events, event.CountdownChanged{Chain: m.cfg.Chain, Seconds: countdown})
	}

	if elapsed < duration {
		return events, false
	}

	// Completion requires at least one accumulated sample. Otherwise the
	// phase stays running with an expired countdown and reports the
	// awaiting-data condition until samples arrive.
	if m.accum.Count() == 0 {
		if !m.awaitingData {
			m.awaitingData = true
			events = append(events, event.PhaseChanged{
				Chain:        m.cfg.Chain,
				Phase:        m.phase.String(),
				AwaitingData: true,
			})
		}
		return events, false
	}

	events = append(events, m.completePhase()...)
	return events, true
}

// completePhase stores the accumulated mean as the current phase's baseline
// and advances to the next phase.
func (m *Machine) completePhase() []event.Event {
	completed := m.phase
	mean := m.accum.Mean()
	m.baselines.Store(completed, mean, m.cfg.Strategy)
	m.accum.Reset()

	stored, _ := m.baselines.Get(completed)
	m.phase = completed.next()
	m.running = false
	m.awaitingData = false

	return []event.Event{
		event.BaselineReady{
			Chain:   m.cfg.Chain,
			Phase:   completed.String(),
			Feature: Feature(stored),
		},
		event.PhaseChanged{Chain: m.cfg.Chain, Phase: m.phase.String()},
	}
}

// Ingest routes one sample. During an accumulating phase the sample is added
// to the phase accumulator whether or not the phase timer is running: samples
// arriving before the explicit start count against the current phase pointer.
// Once calibration is Done, samples feed the classifier instead.
func (m *Machine) Ingest(s sensor.Sample) []event.Event {
	if m.phase.Accumulating() {
		m.accum.Add(s)
		return nil
	}

	if m.phase != PhaseDone {
		return nil
	}

	ratios, ok := Classify(&m.baselines, s)
	if !ok {
		return nil
	}
	m.ratios = ratios

	events := []event.Event{
		event.RatioUpdated{
			Chain:    m.cfg.Chain,
			Forward:  ratios.Forward,
			Backward: ratios.Backward,
		},
	}

	if dir, changed := m.detector.Update(ratios); changed {
		events = append(events, event.DirectionChanged{
			Chain:     m.cfg.Chain,
			Direction: dir.String(),
		})
	}

	return events
}
