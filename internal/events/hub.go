package events

import (
	"context"
	"sync"

	"echallan-service/internal/domain/anpr"
)

const subscriberBuffer = 16

// Hub is the in-process subscriber channel used by the SSE endpoint.
// Slow subscribers lose events instead of stalling the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan anpr.PlateEvent
	nextID int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan anpr.PlateEvent)}
}

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan anpr.PlateEvent, func()) {
	ch := make(chan anpr.PlateEvent, subscriberBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Publish(_ context.Context, ev anpr.PlateEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}
