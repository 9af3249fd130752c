package calib

import (
	"context"
	"log"
	"time"

	"github.com/msardana/leanplay/internal/event"
	"github.com/msardana/leanplay/internal/sensor"
)

// Snapshot is a read-only view of one chain's state for the observation API.
type Snapshot struct {
	Chain        string  `json:"chain"`
	Phase        string  `json:"phase"`
	Countdown    int     `json:"countdown"`
	Running      bool    `json:"running"`
	AwaitingData bool    `json:"awaiting_data"`
	Connected    bool    `json:"connected"`
	Direction    string  `json:"direction"`
	Forward      float64 `json:"forward_ratio"`
	Backward     float64 `json:"backward_ratio"`
	Opacity      float64 `json:"opacity"`
}

// Engine runs one chain's calibration machine on a single goroutine. Sensor
// callbacks, phase timer ticks and UI commands are posted onto a command
// channel and drained by the loop, so no two state mutations interleave.
// Engine implements sensor.Handler.
type Engine struct {
	cfg     Config
	bus     *event.Bus
	machine *Machine

	cmds chan func()
	done chan struct{}

	// Phase timer state. Touched only from the run loop. A fresh ticker is
	// created for every StartPhase so a stale tick can never fire into the
	// next phase's accumulator.
	ticker *time.Ticker
	tickCh <-chan time.Time
}

// NewEngine creates an engine for the given chain configuration publishing to
// the given bus.
func NewEngine(cfg Config, bus *event.Bus) *Engine {
	return &Engine{
		cfg:     cfg,
		bus:     bus,
		machine: NewMachine(cfg),
		cmds:    make(chan func(), 64),
		done:    make(chan struct{}),
	}
}

// Chain returns the engine's chain name.
func (e *Engine) Chain() string {
	return e.cfg.Chain
}

// Run drains commands and timer ticks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	defer e.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.cmds:
			fn()
		case now := <-e.tickCh:
			events, completed := e.machine.Tick(now)
			e.publish(events)
			if completed {
				e.stopTimer()
			}
		}
	}
}

// post marshals fn onto the run loop. Commands posted after shutdown are
// dropped.
func (e *Engine) post(fn func()) {
	select {
	case e.cmds <- fn:
	case <-e.done:
	}
}

func (e *Engine) publish(events []event.Event) {
	for _, ev := range events {
		e.bus.Publish(ev)
	}
}

// startTimer arms a fresh phase timer. Loop goroutine only.
func (e *Engine) startTimer() {
	e.stopTimer()
	e.ticker = time.NewTicker(e.cfg.tick())
	e.tickCh = e.ticker.C
}

// stopTimer invalidates the phase timer. Loop goroutine only.
func (e *Engine) stopTimer() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
		e.tickCh = nil
	}
}

// OnSample implements sensor.Handler.
func (e *Engine) OnSample(s sensor.Sample) {
	e.post(func() {
		e.publish(e.machine.Ingest(s))
	})
}

// OnConnected implements sensor.Handler. A connect automatically starts
// calibration for the chain.
func (e *Engine) OnConnected() {
	e.post(func() {
		e.publish(e.machine.SetConnected(true))
		e.bus.Publish(event.SensorState{Chain: e.cfg.Chain, Connected: true})
		log.Printf("calib: %s sensor connected, starting calibration", e.cfg.Chain)
		e.stopTimer()
		e.publish(e.machine.StartCalibration())
	})
}

// OnDisconnected implements sensor.Handler. The phase timer is invalidated
// and the machine returns to NotStarted.
func (e *Engine) OnDisconnected() {
	e.post(func() {
		e.stopTimer()
		e.publish(e.machine.SetConnected(false))
		e.bus.Publish(event.SensorState{Chain: e.cfg.Chain, Connected: false})
		log.Printf("calib: %s sensor disconnected", e.cfg.Chain)
	})
}

// StartCalibration resets the chain and enters the Neutral phase.
func (e *Engine) StartCalibration() {
	e.post(func() {
		e.stopTimer()
		e.publish(e.machine.StartCalibration())
	})
}

// StartCurrentPhase arms the phase timer for the current phase. No-op when
// disconnected, when no phase is pending, or when the phase already runs.
func (e *Engine) StartCurrentPhase() {
	e.post(func() {
		started, events := e.machine.StartPhase(time.Now())
		e.publish(events)
		if started {
			e.startTimer()
		}
	})
}

// Snapshot returns a consistent view of the chain state. It round-trips
// through the run loop; after shutdown it returns the zero snapshot.
func (e *Engine) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	e.post(func() {
		m := e.machine
		ratios := m.Ratios()
		active := ratios.Forward
		if ratios.Backward > active {
			active = ratios.Backward
		}
		reply <- Snapshot{
			Chain:        e.cfg.Chain,
			Phase:        m.Phase().String(),
			Countdown:    m.Countdown(),
			Running:      m.Running(),
			AwaitingData: m.AwaitingData(),
			Connected:    m.Connected(),
			Direction:    m.Direction().String(),
			Forward:      ratios.Forward,
			Backward:     ratios.Backward,
			Opacity:      Opacity(active),
		}
	})

	select {
	case s := <-reply:
		return s
	case <-e.done:
		return Snapshot{Chain: e.cfg.Chain}
	}
}
