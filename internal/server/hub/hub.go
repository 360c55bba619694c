// Package hub wakes long-poll watchers when a collection changes.
package hub

import "sync"

// Hub хранит для каждой коллекции канал, который закрывается при следующей записи.
// Подписчик берет канал через Wait до чтения ревизии, поэтому запись,
// случившаяся между чтением и ожиданием, не теряется.
type Hub struct {
	waiters map[string]chan struct{}
	mu      sync.Mutex
}

// New creates an empty hub
func New() *Hub {
	return &Hub{waiters: make(map[string]chan struct{})}
}

// Wait returns a channel closed on the next Notify for collection
func (h *Hub) Wait(collection string) <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.waiters[collection]
	if !ok {
		ch = make(chan struct{})
		h.waiters[collection] = ch
	}
	return ch
}

// Notify wakes everyone waiting on collection
func (h *Hub) Notify(collection string) {
	h.mu.Lock()
	ch, ok := h.waiters[collection]
	delete(h.waiters, collection)
	h.mu.Unlock()

	if ok {
		close(ch)
	}
}
