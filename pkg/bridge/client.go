package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"playrelay/pkg/clientdata"
	"playrelay/pkg/integration"
	"playrelay/pkg/retryutil"
)

// ServerIdentity is the {name, string_id, region, address} tuple this
// node announces in LoginSrv.
type ServerIdentity struct {
	Name     string
	StringID string
	Region   string
	Address  string
}

// Hooks lets the connection handler / bridge owner react to
// authentication and notifications without the bridge importing the
// handler package back, breaking what would otherwise be a cyclic
// ownership edge between the two.
type Hooks struct {
	OnAuthenticated func()
	OnDisconnected  func()
	OnUserBanned    func(accountID int32)
	OnRoomCreated   func(roomID uint32)
}

// Client is the outbound connection to the central control server.
type Client struct {
	url      string
	password string
	identity ServerIdentity
	hooks    Hooks

	state atomic.Int32 // State

	issuer atomic.Pointer[TokenIssuer]
	signer atomic.Pointer[ScriptSigner]
	roles  atomic.Pointer[[]clientdata.Role]

	Rooms *RoomStore
	Users *UserCache

	connStarted      time.Time
	wasAuthenticated bool
	attempt          int

	dialer   *websocket.Dialer
	executor *integration.ResilientExecutor

	log *logrus.Entry
}

// New creates a bridge client for the given control-plane URL and
// server identity. It does not connect until Run is called.
func New(url, password string, identity ServerIdentity, hooks Hooks) *Client {
	return &Client{
		url:      url,
		password: password,
		identity: identity,
		hooks:    hooks,
		Rooms:    NewRoomStore(),
		Users:    NewUserCache(),
		dialer:   websocket.DefaultDialer,
		executor: integration.NetworkExecutor,
		log:      logrus.WithField("component", "bridge"),
	}
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Issuer returns the installed token issuer, if the bridge is
// currently authenticated. Callers take a snapshot and do not hold
// it across long operations.
func (c *Client) Issuer() (TokenIssuer, bool) {
	p := c.issuer.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

func (c *Client) Signer() (ScriptSigner, bool) {
	p := c.signer.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

func (c *Client) Roles() []clientdata.Role {
	p := c.roles.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Run drives the connect/reconnect loop until ctx is cancelled.
// Scheduled tasks observe ctx on their next tick and exit.
//
// Reconnection: a dial failure always backs off (2^min(attempt,6)
// seconds); a disconnect after a successful connect retries
// immediately unless the connection was short-lived, in which case it
// waits a flat 10s instead.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		connected := c.connectAndServe(ctx)
		if ctx.Err() != nil {
			return
		}

		var wait time.Duration
		if !connected {
			c.attempt++
			wait = retryutil.Backoff(c.attempt)
		} else {
			c.attempt = 0
			if d, short := retryutil.ShortLivedWaitFor(time.Since(c.connStarted), c.wasAuthenticated); short {
				wait = d
			}
		}
		if wait > 0 {
			c.log.WithFields(logrus.Fields{"wait": wait, "attempt": c.attempt}).Info("bridge reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}
}

// connectAndServe performs one connection attempt and blocks for its
// duration. It reports whether the dial itself succeeded, so Run can
// tell a connect error (backoff) apart from a post-connect disconnect
// (immediate retry or short-lived wait). On return, the bridge has
// torn down the token issuer, signer and role list so unauthenticated
// logins start failing fast.
func (c *Client) connectAndServe(ctx context.Context) bool {
	c.setState(Connecting)
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.log.WithError(err).Warn("bridge dial failed")
		c.setState(Disconnected)
		return false
	}
	defer conn.Close()

	c.connStarted = time.Now()
	c.wasAuthenticated = false
	c.setState(Connected)

	if err := c.sendLoginSrv(conn); err != nil {
		c.log.WithError(err).Warn("bridge login send failed")
		c.teardownAuth()
		c.setState(Disconnected)
		return true
	}

	c.serve(ctx, conn)
	c.teardownAuth()
	if c.hooks.OnDisconnected != nil {
		c.hooks.OnDisconnected()
	}
	c.setState(Disconnected)
	return true
}

func (c *Client) teardownAuth() {
	c.issuer.Store(nil)
	c.signer.Store(nil)
	c.roles.Store(nil)
}

var ErrBridgeClosed = errors.New("bridge: connection closed")
