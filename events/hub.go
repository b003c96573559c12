package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Hub is a pub/sub fan-out for engine events. Publishing is non-blocking:
// if a subscriber's channel is full the event is dropped for that
// subscriber, never queued against the clock.
type Hub struct {
	mu   sync.RWMutex
	subs map[int64][]chan Event // keyed by world ID

	// Global subscribers receive every world's events.
	global []chan Event

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[int64][]chan Event),
	}
}

// Publish sends an event to the world's subscribers and to global ones.
func (h *Hub) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	h.published.Add(1)

	for _, ch := range h.subs[e.WorldID] {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
	for _, ch := range h.global {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel receiving events for one world, or for all
// worlds when worldID is 0. The caller must drain the channel to avoid
// drops and must Unsubscribe when done.
func (h *Hub) Subscribe(worldID int64, bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = 64
	}
	ch := make(chan Event, bufSize)

	h.mu.Lock()
	defer h.mu.Unlock()

	if worldID == 0 {
		h.global = append(h.global, ch)
	} else {
		h.subs[worldID] = append(h.subs[worldID], ch)
	}
	return ch
}

// Unsubscribe removes a channel from all subscriptions. The channel is not
// closed here; the subscriber owns it.
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.global = removeChan(h.global, ch)
	for id, subs := range h.subs {
		h.subs[id] = removeChan(subs, ch)
	}
}

// Stats returns publish/drop counts for monitoring.
func (h *Hub) Stats() (published, dropped uint64) {
	return h.published.Load(), h.dropped.Load()
}

func removeChan(slice []chan Event, target <-chan Event) []chan Event {
	result := make([]chan Event, 0, len(slice))
	for _, ch := range slice {
		if ch != target {
			result = append(result, ch)
		}
	}
	return result
}
