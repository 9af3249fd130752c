// Package app wires the leanplay pipeline together: sensor links feeding the
// calibration engines, the gaze tracker, the playback controller, and the
// session recorder.
package app

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/msardana/leanplay/internal/calib"
	"github.com/msardana/leanplay/internal/config"
	"github.com/msardana/leanplay/internal/event"
	"github.com/msardana/leanplay/internal/gaze"
	"github.com/msardana/leanplay/internal/playback"
	"github.com/msardana/leanplay/internal/sensor"
	"github.com/msardana/leanplay/internal/store"
)

// settingControlEnabled is the settings key persisting the enable toggle
// across runs.
const settingControlEnabled = "control_enabled"

// LinkFactory builds a sensor link delivering samples to the given handler.
// The handler is the chain's calibration engine.
type LinkFactory func(h sensor.Handler) sensor.Link

// Deps are the externally-constructed pieces the App orchestrates. Store,
// Tracker and the link factories are optional; Transport is required. Bus may
// be supplied when a dependency (such as the gaze tracker) was built around
// it; otherwise the App creates its own.
type Deps struct {
	Bus          *event.Bus
	Store        *store.Store
	Transport    playback.Transport
	SteeringLink LinkFactory
	VolumeLink   LinkFactory
	Tracker      *gaze.Tracker
}

// App is the main application orchestrating calibration, classification and
// playback control.
type App struct {
	cfg  config.Config
	deps Deps

	bus        *event.Bus
	steering   *calib.Engine
	volume     *calib.Engine
	controller *playback.Controller

	mu      sync.Mutex
	session *store.Session
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	wiringSub   chan event.Event
	recorderSub chan event.Event
}

// New creates an App from the configuration and dependencies.
func New(cfg config.Config, deps Deps) *App {
	bus := deps.Bus
	if bus == nil {
		bus = event.NewBus()
	}

	a := &App{
		cfg:  cfg,
		deps: deps,
		bus:  bus,
		steering: calib.NewEngine(calib.Config{
			Chain:         "steering",
			Strategy:      calib.Strategy(cfg.Chains.Steering.Strategy),
			PhaseDuration: cfg.Chains.Steering.PhaseDuration(),
			Tick:          cfg.Chains.Steering.Tick(),
			FullThreshold: cfg.Chains.Steering.FullThreshold,
		}, bus),
		volume: calib.NewEngine(calib.Config{
			Chain:         "volume",
			Strategy:      calib.Strategy(cfg.Chains.Volume.Strategy),
			PhaseDuration: cfg.Chains.Volume.PhaseDuration(),
			Tick:          cfg.Chains.Volume.Tick(),
			FullThreshold: cfg.Chains.Volume.FullThreshold,
		}, bus),
	}

	a.controller = playback.NewController(playback.ControllerConfig{
		Tick:            cfg.Playback.Tick(),
		FastForwardRate: cfg.Playback.FastForwardRate,
		RewindStep:      cfg.Playback.RewindStep(),
		VolumeStep:      cfg.Playback.VolumeStep,
		GazeGated:       deps.Tracker != nil,
	}, deps.Transport, bus)

	return a
}

// Bus returns the application event bus.
func (a *App) Bus() *event.Bus {
	return a.bus
}

// Steering returns the steering chain engine.
func (a *App) Steering() *calib.Engine {
	return a.steering
}

// Volume returns the volume chain engine.
func (a *App) Volume() *calib.Engine {
	return a.volume
}

// Controller returns the playback controller.
func (a *App) Controller() *playback.Controller {
	return a.controller
}

// SessionID returns the id of the current session, or "" when no session is
// open.
func (a *App) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return ""
	}
	return a.session.ID
}

// SetEnabled enables or disables playback control and persists the choice.
func (a *App) SetEnabled(enabled bool) {
	a.controller.SetEnabled(enabled)

	if a.deps.Store != nil {
		value := "false"
		if enabled {
			value = "true"
		}
		if err := a.deps.Store.Settings().Set(settingControlEnabled, value); err != nil {
			log.Printf("failed to persist enable toggle: %v", err)
		}
	}
}

// Start launches the pipeline: engines, sensor links, gaze tracking, the
// playback control loop and the session recorder.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.deps.Store != nil {
		session, err := a.deps.Store.Sessions().Begin(
			a.cfg.Chains.Steering.Strategy, a.cfg.Chains.Volume.Strategy)
		if err != nil {
			cancel()
			a.cancel = nil
			return err
		}
		a.session = session

		// Restore the persisted enable toggle
		if value, err := a.deps.Store.Settings().Get(settingControlEnabled); err == nil {
			a.controller.SetEnabled(value == "true")
		}

		a.recorderSub = a.bus.Subscribe(1024)
		a.wg.Add(1)
		go a.record(a.recorderSub, a.session.ID)
	}

	a.wiringSub = a.bus.Subscribe(256)
	a.wg.Add(1)
	go a.wire(a.wiringSub)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.steering.Run(ctx)
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.volume.Run(ctx)
	}()

	if a.deps.SteeringLink != nil {
		a.runLink(ctx, "steering", a.deps.SteeringLink(a.steering))
	}
	if a.deps.VolumeLink != nil {
		a.runLink(ctx, "volume", a.deps.VolumeLink(a.volume))
	}

	if a.deps.Tracker != nil {
		if err := a.deps.Tracker.Start(); err != nil {
			log.Printf("gaze tracking unavailable: %v", err)
		}
	}

	a.controller.Start()

	log.Println("pipeline started")
	return nil
}

// Stop halts the pipeline and closes the session.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel == nil {
		return
	}
	a.cancel()
	a.cancel = nil

	a.controller.Stop()
	if a.deps.Tracker != nil {
		a.deps.Tracker.Stop()
	}

	a.bus.Unsubscribe(a.wiringSub)
	if a.recorderSub != nil {
		a.bus.Unsubscribe(a.recorderSub)
	}
	a.wg.Wait()

	if a.session != nil {
		if err := a.deps.Store.Sessions().End(a.session.ID); err != nil {
			log.Printf("failed to end session: %v", err)
		}
		a.session = nil
	}

	log.Println("pipeline stopped")
}

// runLink starts a sensor link and keeps it running until the context ends.
func (a *App) runLink(ctx context.Context, chain string, link sensor.Link) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := link.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("%s sensor link stopped: %v", chain, err)
		}
	}()
}

// wire feeds classified directions and the gaze state into the playback
// controller.
func (a *App) wire(sub chan event.Event) {
	defer a.wg.Done()

	for ev := range sub {
		switch e := ev.(type) {
		case event.DirectionChanged:
			d := calib.ParseDirection(e.Direction)
			switch e.Chain {
			case "steering":
				a.controller.SetSteeringDirection(d)
			case "volume":
				a.controller.SetVolumeDirection(d)
			}
		case event.GazeChanged:
			a.controller.SetLooking(e.Looking)
		case event.SensorState:
			// A disconnected steering sensor must not leave the
			// transport stuck in a non-normal mode.
			if e.Chain == "steering" && !e.Connected {
				a.controller.SetSteeringDirection(calib.DirectionNeutral)
			}
			if e.Chain == "volume" && !e.Connected {
				a.controller.SetVolumeDirection(calib.DirectionNeutral)
			}
		}
	}
}

// record appends bus events to the session log. The high-rate per-sample
// events are skipped; the log captures transitions, not the raw stream.
func (a *App) record(sub chan event.Event, sessionID string) {
	defer a.wg.Done()

	for ev := range sub {
		switch ev.(type) {
		case event.RatioUpdated, event.CountdownChanged:
			continue
		}

		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := a.deps.Store.Sessions().RecordEvent(sessionID, event.TypeOf(ev), string(payload)); err != nil {
			log.Printf("failed to record %s event: %v", event.TypeOf(ev), err)
		}
	}
}
