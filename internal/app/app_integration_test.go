package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/msardana/leanplay/internal/calib"
	"github.com/msardana/leanplay/internal/config"
	"github.com/msardana/leanplay/internal/playback"
	"github.com/msardana/leanplay/internal/sensor"
	"github.com/msardana/leanplay/internal/store"
)

// fastConfig shrinks the calibration and control intervals so the full flow
// runs in well under a second.
func fastConfig() config.Config {
	cfg := config.Default()
	cfg.Chains.Steering.PhaseDurationMS = 60
	cfg.Chains.Steering.TickMS = 10
	cfg.Chains.Volume.PhaseDurationMS = 60
	cfg.Chains.Volume.TickMS = 10
	cfg.Playback.TickMS = 10
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func pressure(a, b, c, d int32) sensor.Sample {
	return sensor.Sample{Channels: [4]int32{a, b, c, d}, At: time.Now()}
}

// calibratePhase arms the current phase and feeds stance samples until the
// engine advances past it.
func calibratePhase(t *testing.T, eng *calib.Engine, link *sensor.MockLink, s sensor.Sample) {
	t.Helper()

	from := eng.Snapshot().Phase
	eng.StartCurrentPhase()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		link.Feed(s)
		if eng.Snapshot().Phase != from {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("phase never advanced past %s", from)
}

func TestApp_LeanToFastForwardFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	transport := playback.NewMockTransport(false)
	var link *sensor.MockLink
	a := New(fastConfig(), Deps{
		Store:     s,
		Transport: transport,
		SteeringLink: func(h sensor.Handler) sensor.Link {
			link = sensor.NewMockLink(h)
			return link
		},
	})

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	// Connect starts calibration automatically.
	link.Connect()
	waitFor(t, "neutral phase", func() bool {
		return a.Steering().Snapshot().Phase == "neutral"
	})

	// Neutral lean, forward lean, backward lean.
	calibratePhase(t, a.Steering(), link, pressure(100, 110, 120, 210))
	calibratePhase(t, a.Steering(), link, pressure(110, 120, 130, 208))
	calibratePhase(t, a.Steering(), link, pressure(90, 100, 110, 212))

	waitFor(t, "calibration done", func() bool {
		return a.Steering().Snapshot().Phase == "done"
	})

	// A full forward lean must switch the transport into fast forward.
	waitFor(t, "fast forward", func() bool {
		link.Feed(pressure(110, 120, 130, 208))
		return transport.Rate() == 2.0
	})
	waitFor(t, "fast_forward mode", func() bool {
		return a.Controller().Mode() == playback.ModeFastForward
	})

	// Returning to the neutral stance drops back to normal playback.
	waitFor(t, "normal mode", func() bool {
		link.Feed(pressure(100, 110, 120, 210))
		return a.Controller().Mode() == playback.ModeNormal
	})

	a.Stop()

	// The session log captured the transitions.
	sessions, err := s.Sessions().List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].EndedAt == nil {
		t.Error("session should be ended after Stop")
	}

	events, err := s.Sessions().Events(sessions[0].ID)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}

	types := map[string]int{}
	for _, e := range events {
		types[e.Type]++
	}
	for _, want := range []string{"sensor_state", "phase_changed", "baseline_ready", "direction_changed", "mode_changed"} {
		if types[want] == 0 {
			t.Errorf("session log is missing %s events (got %v)", want, types)
		}
	}
	// The high-rate per-sample events are not recorded.
	if types["ratio_updated"] != 0 || types["countdown_changed"] != 0 {
		t.Errorf("high-rate events leaked into the session log: %v", types)
	}
}

func TestApp_EnableTogglePersists(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	transport := playback.NewMockTransport(false)
	a := New(fastConfig(), Deps{Store: s, Transport: transport})
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	a.SetEnabled(false)
	a.Stop()

	value, err := s.Settings().Get("control_enabled")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != "false" {
		t.Errorf("expected persisted value false, got %s", value)
	}

	// A new app run restores the toggle.
	b := New(fastConfig(), Deps{Store: s, Transport: transport})
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	// While disabled the controller holds Normal even with a forward lean.
	b.Controller().SetSteeringDirection(calib.DirectionForward)
	time.Sleep(50 * time.Millisecond)
	if b.Controller().Mode() != playback.ModeNormal {
		t.Errorf("expected normal mode while disabled, got %s", b.Controller().Mode())
	}
}
