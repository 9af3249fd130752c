package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/msardana/leanplay/internal/app"
	"github.com/msardana/leanplay/internal/config"
	"github.com/msardana/leanplay/internal/playback"
	"github.com/msardana/leanplay/internal/sensor"
	"github.com/msardana/leanplay/internal/server"
	"github.com/msardana/leanplay/internal/store"
	"github.com/msardana/leanplay/testdata"
)

type chainStatus struct {
	Phase        string  `json:"phase"`
	Running      bool    `json:"running"`
	Connected    bool    `json:"connected"`
	Direction    string  `json:"direction"`
	ForwardRatio float64 `json:"forward_ratio"`
}

type statusResponse struct {
	Chains map[string]chainStatus `json:"chains"`
	Mode   string                 `json:"mode"`
}

func fastConfig() config.Config {
	cfg := config.Default()
	cfg.Chains.Steering.PhaseDurationMS = 60
	cfg.Chains.Steering.TickMS = 10
	cfg.Chains.Volume.PhaseDurationMS = 60
	cfg.Chains.Volume.TickMS = 10
	cfg.Playback.TickMS = 10
	return cfg
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	transport := playback.NewMockTransport(false)
	transport.SetPosition(30 * time.Second)

	var link *sensor.MockLink
	application := app.New(fastConfig(), app.Deps{
		Store:     s,
		Transport: transport,
		SteeringLink: func(h sensor.Handler) sensor.Link {
			link = sensor.NewMockLink(h)
			return link
		},
	})
	if err := application.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer application.Stop()

	srv := server.New(server.Config{
		Store:    s,
		Bus:      application.Bus(),
		Steering: application.Steering(),
		Volume:   application.Volume(),
		Player:   application.Controller(),
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	status := func() statusResponse {
		t.Helper()
		resp, err := client.Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatalf("GET /api/status error = %v", err)
		}
		defer resp.Body.Close()

		var out statusResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode status error = %v", err)
		}
		return out
	}

	waitFor := func(what string, cond func() bool) {
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

	// Connecting the sensor starts calibration in the neutral phase.
	link.Connect()
	waitFor("neutral phase", func() bool {
		st := status()
		return st.Chains["steering"].Phase == "neutral" && st.Chains["steering"].Connected
	})

	// Arm each phase through the API and hold the matching stance.
	calibrate := func(stance sensor.Sample) {
		t.Helper()
		from := status().Chains["steering"].Phase

		resp, err := client.Post(ts.URL+"/api/calibration/steering/phase", "application/json", bytes.NewReader(nil))
		if err != nil {
			t.Fatalf("POST phase error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("POST phase status = %d", resp.StatusCode)
		}

		waitFor("phase past "+from, func() bool {
			link.Feed(stance)
			return status().Chains["steering"].Phase != from
		})
	}

	calibrate(testdata.Neutral())
	calibrate(testdata.Forward())
	calibrate(testdata.Backward())

	waitFor("calibration done", func() bool {
		return status().Chains["steering"].Phase == "done"
	})

	// A sustained forward lean drives fast forward.
	waitFor("fast forward", func() bool {
		link.Feed(testdata.Forward())
		st := status()
		return st.Mode == "fast_forward" && st.Chains["steering"].Direction == "forward"
	})
	if transport.Rate() != 2.0 {
		t.Errorf("transport rate = %v, want 2.0", transport.Rate())
	}

	// A sustained backward lean rewinds by seeking and mutes.
	waitFor("rewind", func() bool {
		link.Feed(testdata.Backward())
		return status().Mode == "rewind"
	})
	waitFor("position stepping back", func() bool {
		link.Feed(testdata.Backward())
		pos, _ := transport.Position()
		return pos < 30*time.Second
	})
	if !transport.Muted() {
		t.Error("transport should be muted during rewind")
	}

	// Back to neutral restores normal playback.
	waitFor("normal", func() bool {
		link.Feed(testdata.Neutral())
		return status().Mode == "normal"
	})
	if transport.Muted() {
		t.Error("transport should be unmuted in normal mode")
	}

	// Restarting calibration clears everything back to the neutral phase.
	resp, err := client.Post(ts.URL+"/api/calibration/steering/start", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("POST start error = %v", err)
	}
	resp.Body.Close()
	waitFor("recalibration", func() bool {
		st := status().Chains["steering"]
		return st.Phase == "neutral" && st.Direction == "neutral"
	})
}

func TestE2E_SensorDropMidPhase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	transport := playback.NewMockTransport(false)
	var link *sensor.MockLink
	application := app.New(fastConfig(), app.Deps{
		Transport: transport,
		SteeringLink: func(h sensor.Handler) sensor.Link {
			link = sensor.NewMockLink(h)
			return link
		},
	})
	if err := application.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer application.Stop()

	waitFor := func(what string, cond func() bool) {
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

	link.Connect()
	waitFor("neutral phase", func() bool {
		return application.Steering().Snapshot().Phase == "neutral"
	})

	application.Steering().StartCurrentPhase()
	link.Feed(testdata.Neutral())

	// Dropping the sensor mid-phase resets the chain completely.
	link.Disconnect()
	waitFor("reset to not started", func() bool {
		snap := application.Steering().Snapshot()
		return snap.Phase == "not_started" && !snap.Connected && !snap.Running
	})

	// Reconnecting starts a fresh calibration.
	link.Connect()
	waitFor("fresh neutral phase", func() bool {
		return application.Steering().Snapshot().Phase == "neutral"
	})
}
