package event

import "sync"

// Bus fans events out to subscribers. Publish never blocks: a subscriber whose
// channel is full misses the event, so subscribers that must not drop should
// buffer generously.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]bool
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[chan Event]bool),
	}
}

// Subscribe registers a new subscriber channel with the given buffer size
// and returns it. The caller must eventually Unsubscribe it.
func (b *Bus) Subscribe(buffer int) chan Event {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs[ch] = true
	b.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[ch] {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish delivers an event to all current subscribers without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
