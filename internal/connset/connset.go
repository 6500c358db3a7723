// Package connset implements the per-user connection fan-out
// (SPEC_FULL §4.3): admission-capped broadcast/unicast over whatever
// transport (WebSocket, WebTransport) a connection came in on.
package connset

import (
	"encoding/json"
	"sync"

	"github.com/fawa-io/monocanvas/internal/fwlog"
)

// Conn is the minimal contract a transport connection must satisfy to
// join a user's connection set.
type Conn interface {
	// Send writes one already-encoded message frame.
	Send(data []byte) error
	// Close closes the underlying transport connection.
	Close() error
	// RemoteAddr is used only for logging.
	RemoteAddr() string
}

// Set is a single user's fan-out: every message broadcast or unicast
// by the workspace passes through here. Owned by the workspace, not
// visible to other users (SPEC_FULL §4.3).
type Set struct {
	userID string
	cap    int

	mu    sync.RWMutex
	conns map[Conn]struct{}
}

// New builds an empty connection set with the given admission cap (0
// = unlimited).
func New(userID string, cap int) *Set {
	return &Set{userID: userID, cap: cap, conns: make(map[Conn]struct{})}
}

// Add admits a new connection, or rejects it if the cap is reached.
func (s *Set) Add(c Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cap > 0 && len(s.conns) >= s.cap {
		fwlog.Warnf("user %s: connection limit reached (%d), rejecting %s", s.userID, s.cap, c.RemoteAddr())
		return false
	}
	s.conns[c] = struct{}{}
	fwlog.Infof("user %s: connection added (%s). total=%d", s.userID, c.RemoteAddr(), len(s.conns))
	return true
}

// Remove drops a connection from the set (idempotent).
func (s *Set) Remove(c Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	n := len(s.conns)
	s.mu.Unlock()
	fwlog.Infof("user %s: connection removed. total=%d", s.userID, n)
}

// ConnectionCount returns the number of currently admitted connections.
func (s *Set) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// IsEmpty reports whether no connections remain.
func (s *Set) IsEmpty() bool {
	return s.ConnectionCount() == 0
}

// Broadcast sends message (JSON-encoded) to every admitted connection,
// dropping (and removing) any connection whose send fails
// (TransportFailure, SPEC_FULL §7 — contained to that connection).
func (s *Set) Broadcast(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		fwlog.Errorf("user %s: failed to encode broadcast message: %v", s.userID, err)
		return
	}

	s.mu.RLock()
	targets := make([]Conn, 0, len(s.conns))
	for c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	var failed []Conn
	for _, c := range targets {
		if err := c.Send(data); err != nil {
			fwlog.Warnf("user %s: broadcast to %s failed: %v", s.userID, c.RemoteAddr(), err)
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		s.Remove(c)
	}
}

// SendTo unicasts message to a single connection.
func (s *Set) SendTo(c Conn, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// Drain closes every connection (each Conn's Close sends its own
// going-away close), for graceful shutdown (SPEC_FULL §4.9).
func (s *Set) Drain() {
	s.mu.Lock()
	targets := make([]Conn, 0, len(s.conns))
	for c := range s.conns {
		targets = append(targets, c)
	}
	s.conns = make(map[Conn]struct{})
	s.mu.Unlock()

	for _, c := range targets {
		_ = c.Close()
	}
}
