package session

import (
	"sync"
	"time"

	"playrelay/pkg/onceref"
	"playrelay/pkg/playerstate"
	"playrelay/pkg/scripting"
	"playrelay/pkg/trigger"
	"playrelay/pkg/wire"
)

// ScriptLog is one line appended to a session's script log buffer.
type ScriptLog struct {
	At      time.Time
	Message string
}

// Session is one logical play instance: a concurrent map of
// participant state plus the authoritative counter store and fan-out
// primitives.
//
// Equality and hashing are by ID, so a Session can live in the
// manager's heartbeat set without embedding itself as a map key
// directly.
type Session struct {
	ID         int64
	owner      int32
	platformer bool
	createdAt  time.Time

	playersMu sync.RWMutex
	players   map[int32]*GamePlayerState

	idsMu sync.Mutex
	ids   map[int32]struct{}

	counters *trigger.Store

	scripting onceref.Cell[scripting.Engine]

	logsMu sync.Mutex
	logs   []ScriptLog
}

// New creates an empty session. owner is the account id of the room
// owner, or 0 for a public session.
func New(id int64, owner int32, platformer bool) *Session {
	return &Session{
		ID:         id,
		owner:      owner,
		platformer: platformer,
		createdAt:  time.Now(),
		players:    make(map[int32]*GamePlayerState),
		ids:        make(map[int32]struct{}),
		counters:   trigger.NewStore(),
	}
}

func (s *Session) Owner() int32        { return s.owner }
func (s *Session) Platformer() bool    { return s.platformer }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Equal reports id-based equality, so sessions can be tracked in
// set-like collections by identity.
func (s *Session) Equal(other *Session) bool {
	if other == nil {
		return false
	}
	return s.ID == other.ID
}

// SetScripting installs the session's scripting engine handle. Safe
// to call at most once; callers that don't want scripting never call
// it, leaving queries about scripting state to ScriptingActive.
func (s *Session) SetScripting(e scripting.Engine) {
	s.scripting.Set(e)
}

// Scripting returns the session's scripting engine and whether one is
// installed.
func (s *Session) Scripting() (scripting.Engine, bool) {
	return s.scripting.Get()
}

// ScriptingActive reports whether a scripting engine is installed,
// the switch DrainOutEvents uses to choose SetItem vs
// CounterChange(Set) encoding.
func (s *Session) ScriptingActive() bool {
	return s.scripting.IsSet()
}

// AppendLog appends one line to the session's script log buffer,
// dropping the oldest entry once MaxScriptLogs is reached.
func (s *Session) AppendLog(message string) {
	s.logsMu.Lock()
	defer s.logsMu.Unlock()
	if len(s.logs) >= MaxScriptLogs {
		copy(s.logs, s.logs[1:])
		s.logs = s.logs[:len(s.logs)-1]
	}
	s.logs = append(s.logs, ScriptLog{At: time.Now(), Message: message})
}

// Logs returns a copy of the current script log buffer.
func (s *Session) Logs() []ScriptLog {
	s.logsMu.Lock()
	defer s.logsMu.Unlock()
	out := make([]ScriptLog, len(s.logs))
	copy(out, s.logs)
	return out
}

// DrainLogs returns the current script log buffer and clears it, the
// one-time pop RequestScriptLogs uses instead of a repeating snapshot.
func (s *Session) DrainLogs() []ScriptLog {
	s.logsMu.Lock()
	defer s.logsMu.Unlock()
	out := s.logs
	s.logs = nil
	return out
}

// AddPlayer inserts a new participant, seeding its unread-counter
// queue from the session's current authoritative snapshot so late
// joiners converge, and records the id in the parallel id set.
func (s *Session) AddPlayer(id int32, wantsHidden bool) *GamePlayerState {
	gp := NewGamePlayerState(wantsHidden)
	gp.SeedCounters(s.counters.Snapshot())

	s.playersMu.Lock()
	s.players[id] = gp
	s.playersMu.Unlock()

	s.idsMu.Lock()
	s.ids[id] = struct{}{}
	s.idsMu.Unlock()

	return gp
}

// RemovePlayer removes id from both the players map and the id set.
func (s *Session) RemovePlayer(id int32) {
	s.playersMu.Lock()
	delete(s.players, id)
	s.playersMu.Unlock()

	s.idsMu.Lock()
	delete(s.ids, id)
	s.idsMu.Unlock()
}

// Player returns id's participant slot, if present.
func (s *Session) Player(id int32) (*GamePlayerState, bool) {
	s.playersMu.RLock()
	defer s.playersMu.RUnlock()
	gp, ok := s.players[id]
	return gp, ok
}

// PlayerCount reports the number of participants currently in the
// session; used by the manager's remove_if(empty) GC predicate.
func (s *Session) PlayerCount() int {
	s.playersMu.RLock()
	defer s.playersMu.RUnlock()
	return len(s.players)
}

// UpdatePlayer installs state as id's latest snapshot, then drains
// that participant's pending counter-changes and events into the
// outbound event list for this frame.
func (s *Session) UpdatePlayer(id int32, state playerstate.State) []wire.Event {
	gp, ok := s.Player(id)
	if !ok {
		return nil
	}
	gp.UpdateState(state)
	return gp.DrainOutEvents(s.ScriptingActive())
}

// NotifyCounterChange updates the authoritative counter store
// (removing the entry if the final value is zero) and pushes the
// resulting value to every participant's unread-counter map,
// including late joiners who will see it converge on SeedCounters.
func (s *Session) NotifyCounterChange(itemID int32, op trigger.Op, raw int32, rawF float32) (newValue int32, applied bool) {
	newValue, applied = s.counters.Change(itemID, op, raw, rawF)
	if !applied {
		return newValue, false
	}

	s.playersMu.RLock()
	ids := make([]int32, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	s.playersMu.RUnlock()

	for _, id := range ids {
		if gp, ok := s.Player(id); ok {
			gp.PushCounter(itemID, newValue)
		}
	}
	return newValue, true
}

// PushEvent appends ev to a single participant's outbound FIFO.
func (s *Session) PushEvent(playerID int32, ev wire.Event) {
	if gp, ok := s.Player(playerID); ok {
		gp.PushEvent(ev)
	}
}

// PushEventToAll appends ev to every participant's outbound FIFO.
func (s *Session) PushEventToAll(ev wire.Event) {
	s.playersMu.RLock()
	ids := make([]int32, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	s.playersMu.RUnlock()

	for _, id := range ids {
		if gp, ok := s.Player(id); ok {
			gp.PushEvent(ev)
		}
	}
}

// ForEveryPlayerID takes the short-lived id-set mutex and calls fn for
// every id currently in the session, without holding per-entry player
// locks during the callback.
func (s *Session) ForEveryPlayerID(fn func(id int32)) {
	s.idsMu.Lock()
	ids := make([]int32, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.idsMu.Unlock()

	for _, id := range ids {
		fn(id)
	}
}

// ForEveryPlayer calls fn for every (id, participant) pair. The
// callback must not touch this same session (e.g. call back into
// AddPlayer/RemovePlayer), since fn runs while holding a snapshot
// taken under the players lock, not the lock itself.
func (s *Session) ForEveryPlayer(fn func(id int32, gp *GamePlayerState)) {
	s.playersMu.RLock()
	type entry struct {
		id int32
		gp *GamePlayerState
	}
	entries := make([]entry, 0, len(s.players))
	for id, gp := range s.players {
		entries = append(entries, entry{id: id, gp: gp})
	}
	s.playersMu.RUnlock()

	for _, e := range entries {
		fn(e.id, e.gp)
	}
}
