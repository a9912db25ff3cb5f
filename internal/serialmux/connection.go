package serialmux

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// HandshakeState records legacy-mode handshakes sent on one connection.
type HandshakeState struct {
	Sent     int       `json:"sent"`
	LastSent time.Time `json:"last_sent,omitzero"`
}

// Connection is the state of one open headset link. It is created when the
// port is opened and passed to the components that need it.
type Connection struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	OpenedAt time.Time `json:"opened_at"`

	mu        sync.Mutex
	handshake HandshakeState
}

// NewConnection returns the state for a link just opened at path.
func NewConnection(path string) *Connection {
	return &Connection{
		ID:       uuid.NewString(),
		Path:     path,
		OpenedAt: time.Now(),
	}
}

// RecordHandshake notes a handshake written at t.
func (c *Connection) RecordHandshake(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handshake.Sent++
	c.handshake.LastSent = t
}

// Handshake returns a copy of the handshake state.
func (c *Connection) Handshake() HandshakeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handshake
}

// ConnectionInfo is the JSON view of a Connection.
type ConnectionInfo struct {
	ID        string         `json:"id"`
	Path      string         `json:"path"`
	OpenedAt  time.Time      `json:"opened_at"`
	Handshake HandshakeState `json:"handshake"`
}

// Info returns a snapshot suitable for encoding.
func (c *Connection) Info() ConnectionInfo {
	return ConnectionInfo{ID: c.ID, Path: c.Path, OpenedAt: c.OpenedAt, Handshake: c.Handshake()}
}
