package session

import (
	"sync"
)

// Manager is the global {session_id -> *Session} registry, plus the
// heartbeat set used to give scripted sessions a periodic tick.
// Session removal is triggered explicitly by DeleteIfEmpty right
// after a player leaves rather than by a time-based sweep: a game
// session has no activity timeout of its own. The done-channel
// shutdown signal is kept in case a future periodic consistency
// sweep is added.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	heartbeatMu sync.Mutex
	heartbeats  map[int64]*Session

	done chan struct{}
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{
		sessions:   make(map[int64]*Session),
		heartbeats: make(map[int64]*Session),
		done:       make(chan struct{}),
	}
}

// GetOrCreate returns session_id's existing Session, or atomically
// creates one with the given owner/platformer if it doesn't exist
// yet.
func (m *Manager) GetOrCreate(sessionID int64, owner int32, platformer bool) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		return s
	}
	s := New(sessionID, owner, platformer)
	m.sessions[sessionID] = s
	return s
}

// Get returns session_id's Session, if one exists.
func (m *Manager) Get(sessionID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// DeleteIfEmpty removes session_id's entry (and drops it from the
// heartbeat set) iff it currently has zero players. Returns whether
// it was removed.
func (m *Manager) DeleteIfEmpty(sessionID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.PlayerCount() != 0 {
		return false
	}
	delete(m.sessions, sessionID)

	m.heartbeatMu.Lock()
	delete(m.heartbeats, sessionID)
	m.heartbeatMu.Unlock()

	return true
}

// RegisterHeartbeat adds s to the set of sessions that receive a
// periodic scripting tick.
func (m *Manager) RegisterHeartbeat(s *Session) {
	m.heartbeatMu.Lock()
	defer m.heartbeatMu.Unlock()
	m.heartbeats[s.ID] = s
}

// Heartbeats returns a snapshot of the sessions currently registered
// for periodic ticks.
func (m *Manager) Heartbeats() []*Session {
	m.heartbeatMu.Lock()
	defer m.heartbeatMu.Unlock()
	out := make([]*Session, 0, len(m.heartbeats))
	for _, s := range m.heartbeats {
		out = append(out, s)
	}
	return out
}

// Len returns the number of active sessions, used by periodic status
// logging.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close signals any background goroutines tied to this manager (none
// currently run their own ticker; sweeping is driven externally via
// DeleteIfEmpty after each session-emptying event rather than a
// time-based expiry, since a game session has no activity timeout of
// its own).
func (m *Manager) Close() {
	close(m.done)
}
