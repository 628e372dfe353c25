package service

import (
	"sync"

	"ai-casedraft-be/internal/dto"
)

// SessionListener receives every session update. It runs on the goroutine
// that produced the update and must not block.
type SessionListener func(update dto.SessionUpdate)

type listenerRegistry struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]SessionListener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{listeners: make(map[int]SessionListener)}
}

func (r *listenerRegistry) add(l SessionListener) func() {
	r.mu.Lock()
	id := r.next
	r.next++
	r.listeners[id] = l
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

func (r *listenerRegistry) emit(update dto.SessionUpdate) {
	r.mu.RLock()
	listeners := make([]SessionListener, 0, len(r.listeners))
	for _, l := range r.listeners {
		listeners = append(listeners, l)
	}
	r.mu.RUnlock()

	for _, l := range listeners {
		l(update)
	}
}
