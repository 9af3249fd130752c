package playback

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeMPV answers IPC commands on the far end of a net.Pipe and records
// every property set on it.
type fakeMPV struct {
	conn net.Conn

	mu       sync.Mutex
	props    map[string]interface{}
	position float64
}

func newFakeMPV(t *testing.T) (*fakeMPV, *MPV) {
	t.Helper()

	client, server := net.Pipe()
	f := &fakeMPV{conn: server, props: make(map[string]interface{})}
	go f.serve()
	t.Cleanup(func() { server.Close() })

	m := NewMPV(client)
	t.Cleanup(func() { m.Close() })
	return f, m
}

func (f *fakeMPV) serve() {
	scanner := bufio.NewScanner(f.conn)
	for scanner.Scan() {
		var req mpvRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return
		}

		resp := mpvResponse{Error: "success", RequestID: req.RequestID}
		switch req.Command[0] {
		case "set_property":
			name := req.Command[1].(string)
			f.mu.Lock()
			f.props[name] = req.Command[2]
			f.mu.Unlock()
		case "get_property":
			if req.Command[1] == "playback-time" {
				f.mu.Lock()
				data, _ := json.Marshal(f.position)
				f.mu.Unlock()
				resp.Data = data
			} else {
				resp.Error = "property not found"
			}
		default:
			resp.Error = "unknown command"
		}

		payload, _ := json.Marshal(resp)
		if _, err := f.conn.Write(append(payload, '\n')); err != nil {
			return
		}
	}
}

func (f *fakeMPV) prop(name string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.props[name]
}

func TestMPVEnablesPitchCorrection(t *testing.T) {
	f, _ := newFakeMPV(t)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if f.prop("audio-pitch-correction") == true {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("audio-pitch-correction was not enabled on connect")
}

func TestMPVSetProperties(t *testing.T) {
	f, m := newFakeMPV(t)

	if err := m.SetRate(2.0); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	if got := f.prop("speed"); got != 2.0 {
		t.Errorf("expected speed 2.0, got %v", got)
	}

	if err := m.SetMuted(true); err != nil {
		t.Fatalf("SetMuted: %v", err)
	}
	if got := f.prop("mute"); got != true {
		t.Errorf("expected mute true, got %v", got)
	}

	if err := m.Seek(90 * time.Second); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if got := f.prop("playback-time"); got != 90.0 {
		t.Errorf("expected playback-time 90, got %v", got)
	}
}

func TestMPVVolumeScale(t *testing.T) {
	f, m := newFakeMPV(t)

	if err := m.SetVolume(0.5); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if got := f.prop("volume"); got != 50.0 {
		t.Errorf("expected volume 50, got %v", got)
	}

	if err := m.SetVolume(1.5); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if got := f.prop("volume"); got != 100.0 {
		t.Errorf("expected volume clamped to 100, got %v", got)
	}
}

func TestMPVPosition(t *testing.T) {
	f, m := newFakeMPV(t)

	f.mu.Lock()
	f.position = 42.5
	f.mu.Unlock()

	pos, err := m.Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos != 42500*time.Millisecond {
		t.Errorf("expected 42.5s, got %v", pos)
	}
}

func TestMPVRejectsReverse(t *testing.T) {
	_, m := newFakeMPV(t)

	if m.SupportsReverse() {
		t.Error("mpv must not report reverse support")
	}
	if err := m.SetRate(-1.0); err == nil {
		t.Error("expected an error for a negative rate")
	}
}

func TestMPVSurfacesIPCErrors(t *testing.T) {
	_, m := newFakeMPV(t)

	if _, err := m.request("get_property", "no-such-property"); err == nil {
		t.Error("expected an error for an unknown property")
	}
}
