package sensor

import "context"

// MockLink is a test implementation of the Link interface. Tests drive the
// handler directly through Connect, Disconnect and Feed.
type MockLink struct {
	handler Handler
}

// NewMockLink creates a MockLink delivering to the given handler.
func NewMockLink(handler Handler) *MockLink {
	return &MockLink{handler: handler}
}

// Run blocks until the context is cancelled. All delivery happens through
// the explicit test methods.
func (m *MockLink) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Connect reports the channel as connected.
func (m *MockLink) Connect() {
	m.handler.OnConnected()
}

// Disconnect reports the channel as disconnected.
func (m *MockLink) Disconnect() {
	m.handler.OnDisconnected()
}

// Feed delivers a parsed sample to the handler.
func (m *MockLink) Feed(s Sample) {
	m.handler.OnSample(s)
}

// FeedRaw parses a raw frame and delivers it if well formed, mirroring the
// drop-on-malformed behavior of the real links.
func (m *MockLink) FeedRaw(raw []byte) {
	sample, err := ParseFrame(raw)
	if err != nil {
		return
	}
	m.handler.OnSample(sample)
}
