package playback

import (
	"sync"
	"time"
)

// MockTransport is a test implementation of the Transport interface that
// records every call.
type MockTransport struct {
	mu              sync.Mutex
	rate            float64
	muted           bool
	volume          float64
	position        time.Duration
	supportsReverse bool

	rateCalls   int
	muteCalls   int
	volumeCalls int
	seekCalls   int
}

// NewMockTransport creates a mock at rate 1.0, volume 1.0, unmuted.
func NewMockTransport(supportsReverse bool) *MockTransport {
	return &MockTransport{
		rate:            1.0,
		volume:          1.0,
		supportsReverse: supportsReverse,
	}
}

// SetRate records the rate.
func (m *MockTransport) SetRate(rate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = rate
	m.rateCalls++
	return nil
}

// SetMuted records the mute state.
func (m *MockTransport) SetMuted(muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	m.muteCalls++
	return nil
}

// SetVolume records the volume, clamped to [0,1].
func (m *MockTransport) SetVolume(volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	m.volume = volume
	m.volumeCalls++
	return nil
}

// Seek records the absolute position.
func (m *MockTransport) Seek(to time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = to
	m.seekCalls++
	return nil
}

// Position returns the recorded position.
func (m *MockTransport) Position() (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position, nil
}

// SupportsReverse returns the configured capability.
func (m *MockTransport) SupportsReverse() bool {
	return m.supportsReverse
}

// SetPosition primes the playback position for tests.
func (m *MockTransport) SetPosition(pos time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = pos
}

// Rate returns the last applied rate.
func (m *MockTransport) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// Muted returns the last applied mute state.
func (m *MockTransport) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// Volume returns the last applied volume.
func (m *MockTransport) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Calls returns the call counts for rate, mute, volume and seek.
func (m *MockTransport) Calls() (rate, mute, volume, seek int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rateCalls, m.muteCalls, m.volumeCalls, m.seekCalls
}
