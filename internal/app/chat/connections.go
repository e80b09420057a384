/*
Package chat contains the core of the messaging engine.

This file defines the ConnectionRegistry, the single source of truth for
which identities are currently online.
*/
package chat

import (
	"sync"

	"talkroom/internal/metrics"
)

// ConnectionRegistry maps a user id to its single live connection. The
// policy is single-session: registering a second connection for an online
// identity replaces the entry, and the caller kicks the prior connection.
type ConnectionRegistry struct {
	mu    sync.Mutex
	conns map[string]*Conn
}

// NewConnectionRegistry returns an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*Conn),
	}
}

// Register inserts or replaces the entry for the connection's user id and
// returns the replaced connection, if any. The prior connection is not
// closed here; the hub owns that.
func (r *ConnectionRegistry) Register(c *Conn) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior := r.conns[c.identity.UserID]
	r.conns[c.identity.UserID] = c

	if prior == nil {
		metrics.WsConnections.Inc()
	}

	return prior
}

// Unregister removes the entry for the connection's user id, but only if
// the entry still is this connection. A stale unregister after a session
// replacement, or a second call during a close/error race, is a no-op.
func (r *ConnectionRegistry) Unregister(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[c.identity.UserID]
	if !ok || current != c {
		return false
	}

	delete(r.conns, c.identity.UserID)
	metrics.WsConnections.Dec()
	return true
}

// Lookup returns the live connection for userID, or nil.
func (r *ConnectionRegistry) Lookup(userID string) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.conns[userID]
}

// Snapshot returns the current live connections. Used for shutdown.
func (r *ConnectionRegistry) Snapshot() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// Len returns the number of registered connections.
func (r *ConnectionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.conns)
}
