package clientdata

import "sync"

// Store is the global account_id -> *ClientData registry. Go has no
// usable weak pointer for this shape, so a weak back-reference is
// emulated with a plain map plus an explicit identity check on
// removal: a disconnect handler only clears the entry if it still
// points at the very client disconnecting, so a duplicate-login
// replacement that already swapped in a newer client is never evicted
// by the old connection's teardown racing in late.
type Store struct {
	mu      sync.RWMutex
	clients map[int32]*ClientData
}

// NewStore creates an empty client registry.
func NewStore() *Store {
	return &Store{clients: make(map[int32]*ClientData)}
}

// Upgrade returns accountID's current client, or false if no client is
// currently registered for that account.
func (s *Store) Upgrade(accountID int32) (*ClientData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[accountID]
	return c, ok
}

// Replace installs newClient as accountID's holder, returning the
// previous holder (if any) so the caller can deauthorize and
// disconnect it with "duplicate login".
func (s *Store) Replace(accountID int32, newClient *ClientData) (previous *ClientData, hadPrevious bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, hadPrevious = s.clients[accountID]
	s.clients[accountID] = newClient
	return previous, hadPrevious
}

// RemoveIfSame deletes accountID's entry only if it currently points
// at client (identity compare), matching the weak-pointer semantics
// of on_client_disconnect. Returns whether the entry was removed.
func (s *Store) RemoveIfSame(accountID int32, client *ClientData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.clients[accountID]
	if !ok || cur != client {
		return false
	}
	delete(s.clients, accountID)
	return true
}

// Len reports the number of tracked accounts, used by the scheduler's
// periodic status logging.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// IDs returns a snapshot of every currently tracked account id, the
// keep-set the periodic user-cache vacuum needs to decide which
// cached moderation entries are still worth retaining.
func (s *Store) IDs() []int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int32, 0, len(s.clients))
	for id := range s.clients {
		out = append(out, id)
	}
	return out
}

// Vacuum removes every entry whose client is marked deauthorized,
// reclaiming memory from connections that disconnected without
// racing a replacement. Returns the number of entries removed.
func (s *Store) Vacuum() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, c := range s.clients {
		if c.IsDeauthorized() {
			delete(s.clients, id)
			removed++
		}
	}
	return removed
}
