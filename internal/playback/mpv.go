package playback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// MPV drives an mpv player over its JSON IPC socket. mpv has no native
// reverse playback, so SupportsReverse reports false and rewinding is done
// by the controller through discrete seeks.
type MPV struct {
	conn   net.Conn
	mu     sync.Mutex
	nextID int64
	// pending maps request ids to waiting response channels.
	pending map[int64]chan mpvResponse
	closed  bool
}

type mpvRequest struct {
	Command   []interface{} `json:"command"`
	RequestID int64         `json:"request_id"`
}

type mpvResponse struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int64           `json:"request_id"`
	Event     string          `json:"event"`
}

// DialMPV connects to the mpv IPC socket at path.
func DialMPV(path string) (*MPV, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mpv at %s: %w", path, err)
	}
	return NewMPV(conn), nil
}

// NewMPV wraps an established IPC connection.
func NewMPV(conn net.Conn) *MPV {
	m := &MPV{
		conn:    conn,
		pending: make(map[int64]chan mpvResponse),
	}
	go m.readLoop()

	// Keep pitch constant at non-unit rates.
	if err := m.setProperty("audio-pitch-correction", true); err != nil {
		log.Printf("playback: failed to enable pitch correction: %v", err)
	}
	return m
}

// Close shuts down the IPC connection.
func (m *MPV) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.conn.Close()
}

// SetRate sets the playback speed. mpv rejects non-positive speeds.
func (m *MPV) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("mpv does not support rate %v", rate)
	}
	return m.setProperty("speed", rate)
}

// SetMuted mutes or unmutes audio.
func (m *MPV) SetMuted(muted bool) error {
	return m.setProperty("mute", muted)
}

// SetVolume sets the volume; mpv's scale is 0-100.
func (m *MPV) SetVolume(volume float64) error {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	return m.setProperty("volume", volume*100)
}

// Seek jumps to an absolute position.
func (m *MPV) Seek(to time.Duration) error {
	return m.setProperty("playback-time", to.Seconds())
}

// Position returns the current playback position.
func (m *MPV) Position() (time.Duration, error) {
	resp, err := m.request("get_property", "playback-time")
	if err != nil {
		return 0, err
	}

	var seconds float64
	if err := json.Unmarshal(resp.Data, &seconds); err != nil {
		return 0, fmt.Errorf("failed to parse playback-time: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// SupportsReverse reports false: mpv cannot play backwards.
func (m *MPV) SupportsReverse() bool {
	return false
}

func (m *MPV) setProperty(name string, value interface{}) error {
	_, err := m.request("set_property", name, value)
	return err
}

// request sends one command and waits for the matching response.
func (m *MPV) request(command string, args ...interface{}) (mpvResponse, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return mpvResponse{}, fmt.Errorf("mpv connection closed")
	}
	m.nextID++
	id := m.nextID
	ch := make(chan mpvResponse, 1)
	m.pending[id] = ch

	req := mpvRequest{
		Command:   append([]interface{}{command}, args...),
		RequestID: id,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		delete(m.pending, id)
		m.mu.Unlock()
		return mpvResponse{}, fmt.Errorf("failed to encode mpv command: %w", err)
	}
	_, err = m.conn.Write(append(payload, '\n'))
	if err != nil {
		delete(m.pending, id)
		m.mu.Unlock()
		return mpvResponse{}, fmt.Errorf("failed to write mpv command: %w", err)
	}
	m.mu.Unlock()

	select {
	case resp, ok := <-ch:
		if !ok {
			return mpvResponse{}, fmt.Errorf("mpv connection closed")
		}
		if resp.Error != "success" {
			return resp, fmt.Errorf("mpv rejected %s: %s", command, resp.Error)
		}
		return resp, nil
	case <-time.After(5 * time.Second):
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
		return mpvResponse{}, fmt.Errorf("mpv did not answer %s", command)
	}
}

// readLoop dispatches responses to waiting requests. Asynchronous player
// events carry no request id and are ignored.
func (m *MPV) readLoop() {
	scanner := bufio.NewScanner(m.conn)
	for scanner.Scan() {
		var resp mpvResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			log.Printf("playback: malformed mpv message: %v", err)
			continue
		}
		if resp.Event != "" {
			continue
		}

		m.mu.Lock()
		ch, ok := m.pending[resp.RequestID]
		if ok {
			delete(m.pending, resp.RequestID)
		}
		m.mu.Unlock()
		if ok {
			ch <- resp
		}
	}

	// Connection gone: release every waiting caller.
	m.mu.Lock()
	m.closed = true
	for id, ch := range m.pending {
		close(ch)
		delete(m.pending, id)
	}
	m.mu.Unlock()
}
