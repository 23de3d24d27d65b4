// Package session keeps the set of connected sessions a broadcast fans out to.
package session

import (
	"sync"

	"rhealth-backend/application/ports"
)

// Registry is an ordered, concurrency-safe implementation of ports.SessionRegistry.
// Sessions are returned in the order they joined.
type Registry struct {
	mu       sync.RWMutex
	order    []ports.Session
	sessions map[string]ports.Session
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]ports.Session),
	}
}

// Register adds s. A session already present is left where it is.
func (r *Registry) Register(s ports.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID()]; exists {
		return
	}
	r.sessions[s.ID()] = s
	r.order = append(r.order, s)
}

// Unregister removes s and reports whether it was registered
func (r *Registry) Unregister(s ports.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID()]; !exists {
		return false
	}
	delete(r.sessions, s.ID())
	for i, candidate := range r.order {
		if candidate.ID() == s.ID() {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Sessions returns a snapshot of the registered sessions
func (r *Registry) Sessions() []ports.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ports.Session, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
