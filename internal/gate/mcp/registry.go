package mcp

import (
	"context"
	"sync"
)

// SessionRegistry is the shared session table. Every inbound connection
// resolves its session here, so all mutation happens under one lock.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

func (r *SessionRegistry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes the session and drops it from the table. Removing an absent
// id is a no-op, so a connection-close racing an explicit DELETE is safe.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Count returns the number of open sessions; surfaced by the health
// endpoint.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every open session, honouring ctx as the drain deadline.
// Used during graceful shutdown so no stream outlives the process.
func (r *SessionRegistry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Attached streams get a heads-up frame before the channel closes.
		s.Notify(shutdownNotice())
		s.Close()
	}
	return nil
}
