package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/msardana/leanplay/internal/event"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventsHandler streams the live event feed to WebSocket clients as JSON
// envelopes.
type EventsHandler struct {
	bus *event.Bus
}

// NewEventsHandler creates a new EventsHandler reading from the given bus.
func NewEventsHandler(bus *event.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// ServeHTTP upgrades the connection and forwards events until the client
// disconnects.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(256)
	defer h.bus.Unsubscribe(sub)

	// Reader goroutine: a read error means the client is gone.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			msg, err := event.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
