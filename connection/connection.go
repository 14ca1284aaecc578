// Package connection tracks live sockets: clientId issuance, the
// outbound send channel each socket's writer drains, and the
// liveness bookkeeping the ping/pong keepalive relies on.
package connection

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection is one live WebSocket's server-side bookkeeping. PlayerID
// is empty until the player completes CONNECT; it survives a later
// reconnect under a new ClientID.
type Connection struct {
	ClientID string
	PlayerID string
	Send     chan []byte

	// Close, if set by the transport layer, forcibly tears down the
	// underlying socket so its read loop unwinds and the connection is
	// reaped. Used by the ping/pong liveness sweep.
	Close func()

	ConnectedAt    time.Time
	LastActivityAt time.Time
}

// Manager owns the set of live connections. Each ConnectionActor
// adds, touches and removes its own entry and the world actor binds
// playerIds; the mutex here serializes those writes against the
// broadcaster's and liveness sweep's reads.
type Manager struct {
	mu          sync.RWMutex
	byClient    map[string]*Connection
	sendBufSize int
}

// New builds a Manager whose per-connection outbound buffer holds
// sendBufSize messages before the writer is considered backed up.
func New(sendBufSize int) *Manager {
	if sendBufSize <= 0 {
		sendBufSize = 16
	}
	return &Manager{
		byClient:    make(map[string]*Connection),
		sendBufSize: sendBufSize,
	}
}

// Add issues a fresh clientId and registers a new Connection.
func (m *Manager) Add() *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	c := &Connection{
		ClientID:       uuid.NewString(),
		Send:           make(chan []byte, m.sendBufSize),
		ConnectedAt:    now,
		LastActivityAt: now,
	}
	m.byClient[c.ClientID] = c
	return c
}

// Remove drops a connection and closes its send channel so its
// writer goroutine exits.
func (m *Manager) Remove(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byClient[clientID]
	if !ok {
		return
	}
	delete(m.byClient, clientID)
	close(c.Send)
}

// Bind associates a connection with a playerId once CONNECT completes
// (or rebinds it to a different playerId on resume).
func (m *Manager) Bind(clientID, playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byClient[clientID]
	if !ok {
		return false
	}
	c.PlayerID = playerID
	return true
}

// ByClientID looks up a connection by socket.
func (m *Manager) ByClientID(clientID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byClient[clientID]
	return c, ok
}

// ByPlayerID finds the (at most one) live connection bound to a
// playerId, used when routing an outbound message to a specific player.
func (m *Manager) ByPlayerID(playerID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.byClient {
		if c.PlayerID == playerID {
			return c, true
		}
	}
	return nil, false
}

// All returns a snapshot of every live connection, in no particular
// order, for broadcast fan-out.
func (m *Manager) All() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Connection, 0, len(m.byClient))
	for _, c := range m.byClient {
		out = append(out, c)
	}
	return out
}

// Touch stamps a connection's last-activity time, called on any
// inbound frame including PONG.
func (m *Manager) Touch(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byClient[clientID]; ok {
		c.LastActivityAt = time.Now()
	}
}

// StaleSince returns the clientIds of connections whose last activity
// predates the given cutoff, for the ping/pong timeout sweep.
func (m *Manager) StaleSince(cutoff time.Time) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stale []string
	for id, c := range m.byClient {
		if c.LastActivityAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale
}

// Count returns the number of live connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byClient)
}
