package realtime

import "sync"

// Presence is one live connection's (user, session) binding. Purely
// ephemeral: rebuilt on reconnect, lost on process restart.
type Presence struct {
	ConnID      string
	UserID      int64
	SessionID   int64
	DisplayName string
	AvatarURL   string
}

// Registry tracks which connections are currently in which session. The
// in-memory implementation below is process-local; a multi-process deployment
// swaps in a distributed store behind the same interface.
type Registry interface {
	Register(p Presence)
	Unregister(connID string) (Presence, bool)
	ListBySession(sessionID int64) []Presence
}

type memoryRegistry struct {
	mu    sync.RWMutex
	conns map[string]Presence
}

// NewMemoryRegistry returns a process-local Registry.
func NewMemoryRegistry() Registry {
	return &memoryRegistry{conns: make(map[string]Presence)}
}

func (r *memoryRegistry) Register(p Presence) {
	r.mu.Lock()
	r.conns[p.ConnID] = p
	r.mu.Unlock()
}

func (r *memoryRegistry) Unregister(connID string) (Presence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
	}
	return p, ok
}

func (r *memoryRegistry) ListBySession(sessionID int64) []Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Presence
	for _, p := range r.conns {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out
}
