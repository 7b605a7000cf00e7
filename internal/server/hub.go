package server

import (
	"context"
	"sync"
)

// Hub fans assessment updates out to progress subscribers. It implements
// assessment.Notifier. Notifications are coalesced: a subscriber that has
// not yet consumed the previous signal only sees one.
type Hub struct {
	mu   sync.Mutex
	subs map[int64]map[chan struct{}]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int64]map[chan struct{}]struct{})}
}

// Subscribe registers interest in one assessment. The returned cancel func
// must be called to release the subscription.
func (h *Hub) Subscribe(id int64) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.subs[id] == nil {
		h.subs[id] = make(map[chan struct{}]struct{})
	}
	h.subs[id][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[id], ch)
		if len(h.subs[id]) == 0 {
			delete(h.subs, id)
		}
	}
}

// Subscribers returns the number of live subscriptions to an assessment.
func (h *Hub) Subscribers(id int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[id])
}

// AssessmentUpdated signals every subscriber of id without blocking.
func (h *Hub) AssessmentUpdated(_ context.Context, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[id] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
