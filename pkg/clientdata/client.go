package clientdata

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"playrelay/pkg/ratelimit"
	"playrelay/pkg/session"
)

// Icons is the per-account cosmetic selection clients report at
// login and may update via UpdateIcons. The exact field set is an
// external, client-defined schema; this module only stores and
// forwards it opaquely alongside metadata replies.
type Icons struct {
	Cube, Ship, Ball, Ufo, Wave, Robot, Spider int16
	Color1, Color2, ColorGlow                  int16
	Glow                                       bool
}

// ClientData is one active connection's state: identity, session
// membership, icons/roles, and the rate limiters guarding its voice
// and quick-chat traffic.
type ClientData struct {
	ConnID     string
	RemoteAddr string

	accountData atomic.Pointer[TokenData]
	deauth      atomic.Bool
	moderator   atomic.Bool

	sessionMu sync.Mutex
	sess      *session.Session

	iconsMu sync.Mutex
	icons   Icons

	rolesMu   sync.Mutex
	roles     []Role
	nameColor string

	disconnectMu sync.Mutex
	disconnectFn func(reason string)

	VoiceLimiter     *rate.Limiter
	QuickChatLimiter *rate.Limiter
}

// New creates a fresh, unauthenticated connection slot.
func New(connID, remoteAddr string) *ClientData {
	return &ClientData{
		ConnID:           connID,
		RemoteAddr:       remoteAddr,
		VoiceLimiter:     ratelimit.NewVoice(),
		QuickChatLimiter: ratelimit.NewQuickChat(),
	}
}

// SetAccountData installs td as this connection's authenticated
// identity.
func (c *ClientData) SetAccountData(td TokenData) {
	c.accountData.Store(&td)
}

// AccountData returns the installed identity and whether one is set.
func (c *ClientData) AccountData() (TokenData, bool) {
	p := c.accountData.Load()
	if p == nil {
		return TokenData{}, false
	}
	return *p, true
}

// AccountID returns the authenticated account id, or 0 if
// unauthenticated.
func (c *ClientData) AccountID() int32 {
	td, ok := c.AccountData()
	if !ok {
		return 0
	}
	return td.AccountID
}

// IsAuthorized reports whether account data has been installed and
// the connection has not since been deauthorized.
func (c *ClientData) IsAuthorized() bool {
	_, ok := c.AccountData()
	return ok && !c.deauth.Load()
}

// Deauthorize is the terminal-from-authorized transition: it marks
// the connection deauthorized. Session membership removal is the
// caller's responsibility (pkg/handler), since only it holds the
// session manager needed to look the membership up.
func (c *ClientData) Deauthorize() {
	c.deauth.Store(true)
}

func (c *ClientData) IsDeauthorized() bool {
	return c.deauth.Load()
}

// SetSession atomically replaces the client's current session,
// returning the previous one (if any) so the caller can remove this
// account from it.
func (c *ClientData) SetSession(s *session.Session) (previous *session.Session) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	previous = c.sess
	c.sess = s
	return previous
}

// Session returns the client's current session, if any.
func (c *ClientData) Session() (*session.Session, bool) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	return c.sess, c.sess != nil
}

// ClearSession removes session membership, returning the session
// that was cleared (if any).
func (c *ClientData) ClearSession() *session.Session {
	return c.SetSession(nil)
}

func (c *ClientData) SetIcons(i Icons) {
	c.iconsMu.Lock()
	defer c.iconsMu.Unlock()
	c.icons = i
}

func (c *ClientData) Icons() Icons {
	c.iconsMu.Lock()
	defer c.iconsMu.Unlock()
	return c.icons
}

// SetRoles installs the resolved role list and derives the moderator
// flag from it (any role with CanModerate set).
func (c *ClientData) SetRoles(roles []Role, nameColor string) {
	c.rolesMu.Lock()
	c.roles = roles
	c.nameColor = nameColor
	c.rolesMu.Unlock()

	mod := false
	for _, r := range roles {
		if r.CanModerate {
			mod = true
			break
		}
	}
	c.moderator.Store(mod)
}

func (c *ClientData) Roles() []Role {
	c.rolesMu.Lock()
	defer c.rolesMu.Unlock()
	out := make([]Role, len(c.roles))
	copy(out, c.roles)
	return out
}

func (c *ClientData) NameColor() string {
	c.rolesMu.Lock()
	defer c.rolesMu.Unlock()
	return c.nameColor
}

func (c *ClientData) IsModerator() bool {
	return c.moderator.Load()
}

// SetDisconnectFunc installs the transport-specific teardown callback.
// Kept as a plain func value rather than an interface so this package
// never needs to import the transport layer that creates ClientData
// in the first place.
func (c *ClientData) SetDisconnectFunc(fn func(reason string)) {
	c.disconnectMu.Lock()
	defer c.disconnectMu.Unlock()
	c.disconnectFn = fn
}

// Disconnect invokes the installed transport teardown callback, if
// any. A no-op before SetDisconnectFunc is called (e.g. in tests that
// never wire a real transport).
func (c *ClientData) Disconnect(reason string) {
	c.disconnectMu.Lock()
	fn := c.disconnectFn
	c.disconnectMu.Unlock()
	if fn != nil {
		fn(reason)
	}
}
