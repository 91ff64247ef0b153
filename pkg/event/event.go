// Package event is a small in-process publish/subscribe bus. The live cache
// fires snapshot events on it and streaming handlers listen.
package event

import (
	"sync"
)

// Handler receives an event payload.
type Handler func(payload interface{})

// Bus dispatches named events to listeners.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: map[string]map[int]Handler{}}
}

// Listen registers handler for event and returns a func that removes it.
func (b *Bus) Listen(event string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[event] == nil {
		b.handlers[event] = map[int]Handler{}
	}
	id := b.nextID
	b.nextID++
	b.handlers[event][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers[event], id)
			b.mu.Unlock()
		})
	}
}

// Fire dispatches synchronously to every listener.
func (b *Bus) Fire(event string, payload interface{}) {
	for _, h := range b.snapshot(event) {
		h(payload)
	}
}

// FireAsync dispatches on one goroutine per listener and returns at once.
func (b *Bus) FireAsync(event string, payload interface{}) {
	for _, h := range b.snapshot(event) {
		go h(payload)
	}
}

// Listeners counts handlers for event.
func (b *Bus) Listeners(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event])
}

func (b *Bus) snapshot(event string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hs := make([]Handler, 0, len(b.handlers[event]))
	for _, h := range b.handlers[event] {
		hs = append(hs, h)
	}
	return hs
}
