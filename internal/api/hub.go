package api

import (
	"sync"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
)

// Hub fans world-space frames out to live subscribers. It is a
// pipeline.Observer; a subscriber that falls behind misses frames.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan body.Frame]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan body.Frame]struct{})}
}

// Observe delivers frame to every subscriber that has room for it.
func (h *Hub) Observe(frame body.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Subscribe returns a channel of frames. It returns false once the hub is closed.
func (h *Hub) Subscribe() (chan body.Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan body.Frame, 4)
	h.subs[ch] = struct{}{}
	return ch, true
}

// Unsubscribe removes ch. Unknown channels are ignored.
func (h *Hub) Unsubscribe(ch chan body.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = make(map[chan body.Frame]struct{})
}
