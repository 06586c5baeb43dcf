package proxy

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionKind distinguishes HTTP forwards from WebSocket relays.
type SessionKind string

const (
	SessionHTTP      SessionKind = "http"
	SessionWebSocket SessionKind = "websocket"
)

// Session describes one in-flight proxy operation. Sessions are created on
// request arrival, removed on completion, and never shared across requests.
type Session struct {
	ID         string
	Kind       SessionKind
	ClientAddr string
	Target     string
	StartedAt  time.Time
}

// Registry tracks live sessions so the hub and diagnostics can list them.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

func (g *Registry) add(kind SessionKind, clientAddr, target string) Session {
	sess := Session{
		ID:         uuid.NewString(),
		Kind:       kind,
		ClientAddr: clientAddr,
		Target:     target,
		StartedAt:  time.Now(),
	}
	g.mu.Lock()
	g.sessions[sess.ID] = sess
	g.mu.Unlock()
	return sess
}

func (g *Registry) remove(id string) {
	g.mu.Lock()
	delete(g.sessions, id)
	g.mu.Unlock()
}

// Active returns the live sessions, oldest first.
func (g *Registry) Active() []Session {
	g.mu.RLock()
	out := make([]Session, 0, len(g.sessions))
	for _, sess := range g.sessions {
		out = append(out, sess)
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Count returns the number of live sessions.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}
