package engine

import (
	"sync"
	"time"
)

// Hub is the session registry. Callers always pass explicit session
// handles around; the hub only maps identifiers to sessions and sweeps
// the ones nobody needs anymore.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
	}
}

// Create returns the session registered under id, creating it when
// absent. Relaunches reuse the existing handle; Start resets it.
func (h *Hub) Create(id, website string, opts Options) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id != "" {
		if existing, ok := h.sessions[id]; ok {
			return existing
		}
	}

	session := NewSession(id, website, opts)
	h.sessions[session.ID] = session
	return session
}

func (h *Hub) Get(id string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	session, ok := h.sessions[id]
	return session, ok
}

func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

// Sessions returns a snapshot of all registered sessions.
func (h *Hub) Sessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Prunable returns sessions that are terminal, persisted, and ended
// before the cutoff. Running sessions are never pruned, even ones whose
// scraper silently went away: without a terminal event the scan is still
// formally in flight.
func (h *Hub) Prunable(cutoff time.Time) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Session
	for _, s := range h.sessions {
		if !s.State().Terminal() || !s.Persisted() {
			continue
		}
		if endedAt := s.EndedAt(); endedAt != nil && endedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}
