package sensor

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// reconnectDelay is the pause between connection attempts to the bridge.
const reconnectDelay = 2 * time.Second

// WSLink reads sensor frames from a websocket bridge. Each text message is one
// frame. The link reconnects forever until its context is cancelled.
type WSLink struct {
	url     string
	handler Handler
	dropped atomic.Int64
}

// NewWSLink creates a websocket link to the given bridge URL.
func NewWSLink(url string, handler Handler) *WSLink {
	return &WSLink{
		url:     url,
		handler: handler,
	}
}

// Dropped returns the number of malformed frames discarded so far.
func (l *WSLink) Dropped() int64 {
	return l.dropped.Load()
}

// Run connects to the bridge and pumps frames until ctx is cancelled.
func (l *WSLink) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
		conn, _, err := dialer.DialContext(ctx, l.url, nil)
		if err != nil {
			log.Printf("sensor: dial %s failed: %v", l.url, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
			}
			continue
		}

		l.handler.OnConnected()
		l.pump(ctx, conn)
		l.handler.OnDisconnected()
	}
}

// pump reads messages until the connection breaks or ctx is cancelled.
func (l *WSLink) pump(ctx context.Context, conn *websocket.Conn) {
	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("sensor: read failed: %v", err)
			}
			return
		}

		sample, err := ParseFrame(raw)
		if err != nil {
			// Malformed frames are dropped without touching any state.
			l.dropped.Add(1)
			continue
		}

		l.handler.OnSample(sample)
	}
}
