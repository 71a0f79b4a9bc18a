package bridge

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"playrelay/pkg/wire"
)

// sendLoginSrv writes the initial LoginSrv handshake frame.
func (c *Client) sendLoginSrv(conn *websocket.Conn) error {
	payload, err := encodeLoginSrv(LoginSrv{Password: c.password, Identity: c.identity})
	if err != nil {
		return fmt.Errorf("bridge: encode LoginSrv: %w", err)
	}
	return conn.WriteMessage(websocket.BinaryMessage, payload)
}

// serve runs the read loop for one established connection, dispatching
// each inbound control frame until the socket closes or ctx is
// cancelled. It returns once the connection is no longer usable.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.WithError(err).Info("bridge connection closed")
			}
			return
		}
		if err := c.dispatch(ctx, conn, data); err != nil {
			c.log.WithError(err).Warn("bridge: bad control frame")
		}
	}
}

func (c *Client) dispatch(ctx context.Context, conn *websocket.Conn, data []byte) error {
	d := wire.NewDecoder(data)
	tag, err := d.U8()
	if err != nil {
		return err
	}

	switch tag {
	case msgLoginOk:
		m, err := decodeLoginOk(d)
		if err != nil {
			return err
		}
		c.handleLoginOk(m)

	case msgLoginFailed:
		m, err := decodeLoginFailed(d)
		if err != nil {
			return err
		}
		c.log.WithField("reason", m.Reason).Warn("bridge login rejected")
		return errBridgeLoginRejected{reason: m.Reason}

	case msgNotifyRoomCreated:
		m, err := decodeNotifyRoomCreated(d)
		if err != nil {
			return err
		}
		c.Rooms.Insert(m.RoomID, Room{Passcode: m.Passcode, Owner: m.Owner})
		ack := encodeRoomCreatedAck(RoomCreatedAck{RoomID: m.RoomID})
		sendErr := c.executor.Execute(ctx, func(context.Context) error {
			return conn.WriteMessage(websocket.BinaryMessage, ack)
		})
		if sendErr != nil {
			return fmt.Errorf("bridge: send RoomCreatedAck: %w", sendErr)
		}
		if c.hooks.OnRoomCreated != nil {
			c.hooks.OnRoomCreated(m.RoomID)
		}

	case msgNotifyRoomDeleted:
		m, err := decodeNotifyRoomDeleted(d)
		if err != nil {
			return err
		}
		c.Rooms.Remove(m.RoomID)

	case msgNotifyUserData:
		m, err := decodeNotifyUserData(d)
		if err != nil {
			return err
		}
		if m.IsBanned {
			if c.hooks.OnUserBanned != nil {
				c.hooks.OnUserBanned(m.AccountID)
			}
			return nil
		}
		c.Users.Set(m.AccountID, UserFlags{
			CanUseQuickChat: m.CanUseQuickChat,
			CanUseVoice:     m.CanUseVoice,
		})

	default:
		return errUnknownMessage{tag: tag}
	}
	return nil
}

// handleLoginOk installs the issuer/signer/roles and flips the bridge
// to Authenticated. A failure to install (none expected today, since
// the fields are stored verbatim) would leave the bridge Connected but
// unauthenticated, modelled here as simply never reaching
// Authenticated.
func (c *Client) handleLoginOk(m LoginOk) {
	issuer := TokenIssuer(simpleTokenIssuer{key: m.TokenKey, expiry: m.TokenExpiry})
	signer := ScriptSigner(hmacScriptSigner{key: []byte(m.ScriptKey)})
	roles := m.Roles

	c.issuer.Store(&issuer)
	c.signer.Store(&signer)
	c.roles.Store(&roles)

	c.wasAuthenticated = true
	c.setState(Authenticated)
	c.log.Info("bridge authenticated")
	if c.hooks.OnAuthenticated != nil {
		c.hooks.OnAuthenticated()
	}
}

type errBridgeLoginRejected struct{ reason string }

func (e errBridgeLoginRejected) Error() string {
	return "bridge: login rejected: " + e.reason
}
