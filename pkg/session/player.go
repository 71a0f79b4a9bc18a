package session

import (
	"sort"
	"sync"

	"playrelay/pkg/playerstate"
	"playrelay/pkg/wire"
)

// counterEntry is one pending counter-change notification: the value
// to deliver and a monotonic priority stamp used to recover insertion
// order once duplicate changes to the same item have coalesced.
type counterEntry struct {
	value int32
	prio  uint64
}

// GamePlayerState is one participant's slot inside a Session: the
// last state it reported, plus its bounded unread-counter map and
// unread-event FIFO.
type GamePlayerState struct {
	mu sync.Mutex

	state       playerstate.State
	hasState    bool
	unreadCtrs  map[int32]counterEntry
	unreadEvts  []wire.Event
	prioCounter uint64

	WantsHidden bool
}

// NewGamePlayerState creates a participant slot with no state yet
// (set by the first UpdateState call) and wantsHidden recorded as
// passed to add_player.
func NewGamePlayerState(wantsHidden bool) *GamePlayerState {
	return &GamePlayerState{
		unreadCtrs:  make(map[int32]counterEntry),
		WantsHidden: wantsHidden,
	}
}

// SeedCounters primes the participant's unread-counter map from the
// session's current authoritative counter snapshot, so a late joiner
// converges to the present state on its first frame.
func (g *GamePlayerState) SeedCounters(snapshot map[int32]int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for item, value := range snapshot {
		g.pushCounterLocked(item, value)
	}
}

// UpdateState replaces the stored last-known state.
func (g *GamePlayerState) UpdateState(s playerstate.State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
	g.hasState = true
}

// State returns the participant's last-known state and whether one
// has ever been received.
func (g *GamePlayerState) State() (playerstate.State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.hasState
}

// PushCounter records a pending counter-change notification,
// coalescing by item id: a duplicate change to the same item before
// the participant next drains collapses to the newest value but keeps
// a fresh (newer) priority stamp, so the newest change always wins.
// New items past MaxUnreadCounters are dropped.
func (g *GamePlayerState) PushCounter(itemID int32, value int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushCounterLocked(itemID, value)
}

func (g *GamePlayerState) pushCounterLocked(itemID int32, value int32) {
	if _, exists := g.unreadCtrs[itemID]; !exists && len(g.unreadCtrs) >= MaxUnreadCounters {
		return
	}
	g.prioCounter++
	g.unreadCtrs[itemID] = counterEntry{value: value, prio: g.prioCounter}
}

// PushEvent appends ev to the participant's outbound FIFO, dropping
// the new event if the queue is already at MaxUnreadEvents.
func (g *GamePlayerState) PushEvent(ev wire.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.unreadEvts) >= MaxUnreadEvents {
		return
	}
	g.unreadEvts = append(g.unreadEvts, ev)
}

// DrainOutEvents empties as much of the pending counter-change map
// and event FIFO as fits in MaxEventCount, counters first (oldest
// prio first), then events in arrival order. scriptingActive selects
// whether counter changes surface as SetItem (script-driven sessions)
// or CounterChange{Op: Set} (plain sessions).
func (g *GamePlayerState) DrainOutEvents(scriptingActive bool) []wire.Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]wire.Event, 0, MaxEventCount)

	type pending struct {
		item  int32
		entry counterEntry
	}
	ordered := make([]pending, 0, len(g.unreadCtrs))
	for item, entry := range g.unreadCtrs {
		ordered = append(ordered, pending{item: item, entry: entry})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].entry.prio < ordered[j].entry.prio })

	consumed := make(map[int32]bool, len(ordered))
	for _, p := range ordered {
		if len(out) >= MaxEventCount {
			break
		}
		if scriptingActive {
			out = append(out, wire.SetItem{ItemID: uint32(p.item), Value: p.entry.value})
		} else {
			out = append(out, wire.CounterChange{Op: wire.CounterSet, ItemID: uint32(p.item), IntValue: p.entry.value})
		}
		consumed[p.item] = true
	}
	for item := range consumed {
		delete(g.unreadCtrs, item)
	}

	remaining := MaxEventCount - len(out)
	if remaining > 0 && len(g.unreadEvts) > 0 {
		n := remaining
		if n > len(g.unreadEvts) {
			n = len(g.unreadEvts)
		}
		out = append(out, g.unreadEvts[:n]...)
		g.unreadEvts = g.unreadEvts[n:]
	}

	return out
}

// UnreadCounterLen and UnreadEventLen expose queue depth for the
// bound invariants tested in pkg/session's test suite.
func (g *GamePlayerState) UnreadCounterLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.unreadCtrs)
}

func (g *GamePlayerState) UnreadEventLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.unreadEvts)
}
