package bridge

import "sync"

// Room is an authoritative room record pushed down by the central
// server: it gates JoinSession by passcode and records the owner to
// hand to the session manager.
type Room struct {
	Passcode uint32
	Owner    int32
}

// RoomStore holds the locally cached {room_id -> Room} table. Rooms
// are created and deleted exclusively by bridge notifications, never
// by the connection handler directly.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[uint32]Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[uint32]Room)}
}

func (r *RoomStore) Insert(roomID uint32, room Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[roomID] = room
}

func (r *RoomStore) Remove(roomID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
}

func (r *RoomStore) Get(roomID uint32) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

// UserFlags is the cached moderation state for one account, pushed
// down by NotifyUserData.
type UserFlags struct {
	CanUseQuickChat bool
	CanUseVoice     bool
	IsBanned        bool
}

// UserCache holds the {account_id -> UserFlags} table the connection
// handler consults for moderation gating.
type UserCache struct {
	mu    sync.RWMutex
	users map[int32]UserFlags
}

func NewUserCache() *UserCache {
	return &UserCache{users: make(map[int32]UserFlags)}
}

func (c *UserCache) Set(accountID int32, flags UserFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[accountID] = flags
}

func (c *UserCache) Get(accountID int32) (UserFlags, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.users[accountID]
	return f, ok
}

// Len reports the number of cached accounts.
func (c *UserCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.users)
}

// Vacuum drops cached entries not present in keep, reclaiming memory
// for accounts that disconnected and were never revisited.
func (c *UserCache) Vacuum(keep map[int32]struct{}) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id := range c.users {
		if _, ok := keep[id]; !ok {
			delete(c.users, id)
			removed++
		}
	}
	return removed
}

// Snapshot copies the cache into a plain map, for persisting to the
// qdb file between restarts.
func (c *UserCache) Snapshot() map[int32]UserFlags {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int32]UserFlags, len(c.users))
	for id, f := range c.users {
		out[id] = f
	}
	return out
}

// Restore loads a previously saved snapshot, replacing anything
// already cached. Used once at startup before the bridge connection
// has had a chance to repopulate the cache from the central server.
func (c *UserCache) Restore(snapshot map[int32]UserFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = make(map[int32]UserFlags, len(snapshot))
	for id, f := range snapshot {
		c.users[id] = f
	}
}
