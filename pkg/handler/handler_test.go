package handler

import (
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playrelay/pkg/bridge"
	"playrelay/pkg/clientdata"
	"playrelay/pkg/playerstate"
	"playrelay/pkg/scripting"
	"playrelay/pkg/session"
	"playrelay/pkg/wire"
)

// fakeSender is an in-memory handler.Sender recording every frame the
// handler under test sent, standing in for the real wsgateway
// connection.
type fakeSender struct {
	mu               sync.Mutex
	frames           [][]byte
	reliable         []bool
	disconnected     bool
	disconnectReason string
}

func (f *fakeSender) Send(data []byte, reliable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, append([]byte(nil), data...))
	f.reliable = append(f.reliable, reliable)
	return nil
}

func (f *fakeSender) Disconnect(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	f.disconnectReason = reason
}

func (f *fakeSender) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// fakeIssuer validates a fixed set of {token -> TokenData} pairs,
// standing in for the bridge's JWT-backed simpleTokenIssuer.
type fakeIssuer struct {
	tokens map[string]clientdata.TokenData
}

func (f fakeIssuer) ValidateMatch(token string, claimedAccountID int32) (clientdata.TokenData, error) {
	td, ok := f.tokens[token]
	if !ok || td.AccountID != claimedAccountID {
		return clientdata.TokenData{}, errors.New("invalid token")
	}
	return td, nil
}

type fakeSigner struct{ fail bool }

func (f fakeSigner) Verify(content, signature []byte) error {
	if f.fail {
		return errors.New("signature rejected")
	}
	return nil
}

type fakeAuth struct {
	issuer   bridge.TokenIssuer
	hasIssuer bool
	signer   bridge.ScriptSigner
	hasSigner bool
	roles    []clientdata.Role
}

func (a *fakeAuth) Issuer() (bridge.TokenIssuer, bool) {
	if !a.hasIssuer {
		return nil, false
	}
	return a.issuer, true
}

func (a *fakeAuth) Signer() (bridge.ScriptSigner, bool) {
	if !a.hasSigner {
		return nil, false
	}
	return a.signer, true
}

func (a *fakeAuth) Roles() []clientdata.Role { return a.roles }

func newTestShared(auth Auth) *Shared {
	return &Shared{
		Config:   Config{Tickrate: 30, VerifyScriptSignatures: false},
		Clients:  clientdata.NewStore(),
		Sessions: session.NewManager(),
		Auth:     auth,
		Rooms:    bridge.NewRoomStore(),
		Users:    bridge.NewUserCache(),
		Engine:   scripting.NullEngine{},
		Log:      logrus.WithField("test", true),
	}
}

func encodeLoginFrame(t *testing.T, tag MessageType, token string, accountID int32) []byte {
	t.Helper()
	e := wire.NewEncoder(16)
	e.U8(uint8(tag))
	require.NoError(t, e.String(token, maxTokenStrLen))
	e.I32(accountID)
	return e.Bytes()
}

func encodeJoinFrame(t *testing.T, sessionID int64, passcode uint32, platformer bool) []byte {
	t.Helper()
	e := wire.NewEncoder(16)
	e.U8(uint8(MsgJoinSession))
	e.U64(uint64(sessionID))
	e.U32(passcode)
	e.Bool(platformer)
	return e.Bytes()
}

func TestLoginOkGrantsAuthorization(t *testing.T) {
	auth := &fakeAuth{
		issuer:    fakeIssuer{tokens: map[string]clientdata.TokenData{"tok": {AccountID: 1, Username: "a"}}},
		hasIssuer: true,
	}
	shared := newTestShared(auth)
	sender := &fakeSender{}
	cd := clientdata.New("c1", "1.2.3.4")
	h := New(shared, cd, sender)

	require.NoError(t, h.Dispatch(encodeLoginFrame(t, MsgLoginUToken, "tok", 1)))

	assert.True(t, cd.IsAuthorized())
	assert.Equal(t, 1, sender.count())
	frame := sender.last()
	require.NotEmpty(t, frame)
	assert.Equal(t, uint8(OutLoginOk), frame[0])
}

func TestLoginInvalidTokenRejected(t *testing.T) {
	auth := &fakeAuth{issuer: fakeIssuer{tokens: map[string]clientdata.TokenData{}}, hasIssuer: true}
	shared := newTestShared(auth)
	sender := &fakeSender{}
	cd := clientdata.New("c1", "1.2.3.4")
	h := New(shared, cd, sender)

	require.NoError(t, h.Dispatch(encodeLoginFrame(t, MsgLoginUToken, "bad-token", 1)))

	assert.False(t, cd.IsAuthorized())
	frame := sender.last()
	require.NotEmpty(t, frame)
	assert.Equal(t, uint8(OutLoginFailed), frame[0])
	assert.Equal(t, uint8(ReasonInvalidUserToken), frame[1])
}

func TestLoginCentralServerUnreachable(t *testing.T) {
	auth := &fakeAuth{hasIssuer: false}
	shared := newTestShared(auth)
	sender := &fakeSender{}
	cd := clientdata.New("c1", "1.2.3.4")
	h := New(shared, cd, sender)

	require.NoError(t, h.Dispatch(encodeLoginFrame(t, MsgLoginUToken, "tok", 1)))

	frame := sender.last()
	require.NotEmpty(t, frame)
	assert.Equal(t, uint8(OutLoginFailed), frame[0])
	assert.Equal(t, uint8(ReasonCentralServerUnreachable), frame[1])
}

// TestDuplicateLoginDisconnectsPreviousConnection covers the
// weak-map "same account, second connection" invariant: the earlier
// ClientData is deauthorized, removed from its session, and told to
// disconnect, while the new connection becomes the account's sole
// entry in the store.
func TestDuplicateLoginDisconnectsPreviousConnection(t *testing.T) {
	auth := &fakeAuth{
		issuer:    fakeIssuer{tokens: map[string]clientdata.TokenData{"tok": {AccountID: 7}}},
		hasIssuer: true,
	}
	shared := newTestShared(auth)

	firstSender := &fakeSender{}
	firstClient := clientdata.New("c1", "1.1.1.1")
	firstClient.SetDisconnectFunc(firstSender.Disconnect)
	firstHandler := New(shared, firstClient, firstSender)
	require.NoError(t, firstHandler.Dispatch(encodeLoginFrame(t, MsgLoginUToken, "tok", 7)))
	require.NoError(t, firstHandler.Dispatch(encodeJoinFrame(t, 100, 0, false)))

	assert.True(t, firstClient.IsAuthorized())
	sess, ok := firstClient.Session()
	require.True(t, ok)
	assert.Equal(t, 1, sess.PlayerCount())

	secondSender := &fakeSender{}
	secondClient := clientdata.New("c2", "2.2.2.2")
	secondHandler := New(shared, secondClient, secondSender)
	require.NoError(t, secondHandler.Dispatch(encodeLoginFrame(t, MsgLoginUToken, "tok", 7)))

	assert.True(t, firstClient.IsDeauthorized())
	assert.True(t, firstSender.disconnected)
	assert.Equal(t, "duplicate login", firstSender.disconnectReason)
	assert.Equal(t, 0, sess.PlayerCount())

	stored, ok := shared.Clients.Upgrade(7)
	require.True(t, ok)
	assert.Same(t, secondClient, stored)
}

func authorizedClient(t *testing.T, shared *Shared, connID string, accountID int32) (*clientdata.ClientData, *fakeSender, *Handler) {
	t.Helper()
	cd := clientdata.New(connID, "127.0.0.1")
	cd.SetAccountData(clientdata.TokenData{AccountID: accountID})
	sender := &fakeSender{}
	return cd, sender, New(shared, cd, sender)
}

func TestJoinSessionInvalidRoomRejected(t *testing.T) {
	shared := newTestShared(&fakeAuth{})
	_, sender, h := authorizedClient(t, shared, "c1", 1)

	sid := session.PackID(5, 42)
	require.NoError(t, h.Dispatch(encodeJoinFrame(t, int64(sid), 0, false)))

	frame := sender.last()
	require.NotEmpty(t, frame)
	assert.Equal(t, uint8(OutJoinSessionFailed), frame[0])
	assert.Equal(t, uint8(ReasonInvalidRoom), frame[1])
}

func TestJoinSessionInvalidPasscodeRejected(t *testing.T) {
	shared := newTestShared(&fakeAuth{})
	shared.Rooms.Insert(42, bridge.Room{Passcode: 1234, Owner: 9})
	_, sender, h := authorizedClient(t, shared, "c1", 1)

	sid := session.PackID(5, 42)
	require.NoError(t, h.Dispatch(encodeJoinFrame(t, int64(sid), 9999, false)))

	frame := sender.last()
	require.NotEmpty(t, frame)
	assert.Equal(t, uint8(OutJoinSessionFailed), frame[0])
	assert.Equal(t, uint8(ReasonInvalidPasscode), frame[1])
}

func TestJoinSessionCorrectPasscodeSucceeds(t *testing.T) {
	shared := newTestShared(&fakeAuth{})
	shared.Rooms.Insert(42, bridge.Room{Passcode: 1234, Owner: 9})
	cd, sender, h := authorizedClient(t, shared, "c1", 1)

	sid := session.PackID(5, 42)
	require.NoError(t, h.Dispatch(encodeJoinFrame(t, int64(sid), 1234, false)))

	assert.Equal(t, 0, sender.count())
	sess, ok := cd.Session()
	require.True(t, ok)
	assert.Equal(t, int64(sid), sess.ID)
	assert.Equal(t, int32(9), sess.Owner())
}

func TestLeaveSessionRemovesPlayerAndGCsEmptySession(t *testing.T) {
	shared := newTestShared(&fakeAuth{})
	cd, _, h := authorizedClient(t, shared, "c1", 1)

	sid := session.PackID(1, 0)
	require.NoError(t, h.Dispatch(encodeJoinFrame(t, int64(sid), 0, false)))
	_, ok := cd.Session()
	require.True(t, ok)

	leave := []byte{uint8(MsgLeaveSession)}
	require.NoError(t, h.Dispatch(leave))

	_, ok = cd.Session()
	assert.False(t, ok)
	_, ok = shared.Sessions.Get(int64(sid))
	assert.False(t, ok)
}

func TestPlayerDataRejectsSpoofedAccountID(t *testing.T) {
	shared := newTestShared(&fakeAuth{})
	cd, sender, h := authorizedClient(t, shared, "c1", 1)
	sid := session.PackID(1, 0)
	require.NoError(t, h.Dispatch(encodeJoinFrame(t, int64(sid), 0, false)))

	e := wire.NewEncoder(64)
	e.U8(uint8(MsgPlayerData))
	st := playerstate.State{AccountID: 999, Single: &playerstate.ObjectData{}}
	playerstate.Encode(e, st)
	playerstate.EncodeCameraRange(e, playerstate.CameraRange{Radius: 100})
	e.U8(0) // metadata requests
	e.U8(0) // events

	require.NoError(t, h.Dispatch(e.Bytes()))
	assert.Equal(t, 0, sender.count())
	_ = cd
}

func TestPlayerDataCounterChangeFansOutToOtherPlayers(t *testing.T) {
	shared := newTestShared(&fakeAuth{})
	sid := session.PackID(1, 0)

	_, h1 := authorizedClientSession(t, shared, "c1", 1, sid)
	sender2, h2 := authorizedClientSession(t, shared, "c2", 2, sid)

	sendPlayerDataWithEvent(t, h1, 1, wire.CounterChange{Op: wire.CounterAdd, ItemID: 5, IntValue: 3})

	// Player 2's own PlayerData tick should now observe the
	// counter-change in its outbound event stream.
	sendPlayerDataWithEvent(t, h2, 2, nil)

	frame := sender2.last()
	require.NotEmpty(t, frame)
	assert.Equal(t, uint8(OutPlayerData), frame[0])
}

// authorizedClientSession logs accountID into sid directly (bypassing
// the token issuer) and returns its sender/handler.
func authorizedClientSession(t *testing.T, shared *Shared, connID string, accountID int32, sid session.ID) (*fakeSender, *Handler) {
	t.Helper()
	_, sender, h := authorizedClient(t, shared, connID, accountID)
	require.NoError(t, h.Dispatch(encodeJoinFrame(t, int64(sid), 0, false)))
	return sender, h
}

func sendPlayerDataWithEvent(t *testing.T, h *Handler, accountID int32, ev wire.Event) {
	t.Helper()
	e := wire.NewEncoder(64)
	e.U8(uint8(MsgPlayerData))
	st := playerstate.State{AccountID: accountID, Single: &playerstate.ObjectData{}}
	playerstate.Encode(e, st)
	playerstate.EncodeCameraRange(e, playerstate.CameraRange{Radius: 100})
	e.U8(0) // metadata requests
	if ev != nil {
		e.U8(1)
		wire.EncodeInto(e, ev)
	} else {
		e.U8(0)
	}
	require.NoError(t, h.Dispatch(e.Bytes()))
}

func TestTwoPlayerLinkRequestInvertsPlayer1Flag(t *testing.T) {
	shared := newTestShared(&fakeAuth{})
	sid := session.PackID(1, 0)

	_, h1 := authorizedClientSession(t, shared, "c1", 1, sid)
	sender2, h2 := authorizedClientSession(t, shared, "c2", 2, sid)

	sendPlayerDataWithEvent(t, h1, 1, wire.TwoPlayerLinkRequest{PlayerID: 2, Player1: true})
	sendPlayerDataWithEvent(t, h2, 2, nil)

	frame := sender2.last()
	require.NotEmpty(t, frame)

	d := wire.NewDecoder(frame[1:])
	neighbourCount, err := d.U16()
	require.NoError(t, err)
	for i := uint16(0); i < neighbourCount; i++ {
		_, err := playerstate.DecodeNeighbour(d)
		require.NoError(t, err)
	}
	replyCount, err := d.U8()
	require.NoError(t, err)
	for i := uint8(0); i < replyCount; i++ {
		accountID, err := d.I32()
		require.NoError(t, err)
		if accountID != 0 {
			_, _ = d.I32()
			_, _ = d.String(maxUsernameLen)
			for j := 0; j < 10; j++ {
				_, _ = d.U16()
			}
			_, _ = d.Bool()
			roleCount, _ := d.U8()
			for k := uint8(0); k < roleCount; k++ {
				_, _ = d.U8()
			}
			_, _ = d.String(maxNameColorLen)
		}
	}

	eventCount, err := d.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(1), eventCount)

	evType, err := d.U16()
	require.NoError(t, err)
	assert.Equal(t, uint16(wire.EvTwoPlayerLinkRequest), evType)

	playerID, err := d.I32()
	require.NoError(t, err)
	assert.Equal(t, int32(1), playerID)
	player1, err := d.Bool()
	require.NoError(t, err)
	assert.False(t, player1, "the request's Player1=true must arrive inverted to the target")
}

func TestSendLevelScriptRequiresOwner(t *testing.T) {
	shared := newTestShared(&fakeAuth{})
	sid := session.PackID(1, 0)
	shared.Sessions.GetOrCreate(int64(sid), 9, false)

	cd, _, h := authorizedClient(t, shared, "c1", 1)
	require.NoError(t, h.Dispatch(encodeJoinFrame(t, int64(sid), 0, false)))

	e := wire.NewEncoder(64)
	e.U8(uint8(MsgSendLevelScript))
	e.U8(1) // one script
	require.NoError(t, e.String("main", maxScriptNameLen))
	e.Uvarint(0)
	e.U8(0)

	require.NoError(t, h.Dispatch(e.Bytes()))

	sess, ok := cd.Session()
	require.True(t, ok)
	_, scripted := sess.Scripting()
	assert.False(t, scripted)
}

func TestSendLevelScriptSignatureVerification(t *testing.T) {
	shared := newTestShared(&fakeAuth{
		signer:    fakeSigner{fail: true},
		hasSigner: true,
	})
	shared.Config.VerifyScriptSignatures = true
	logEngine := &scripting.LogEngine{}
	shared.Engine = logEngine

	sid := session.PackID(1, 0)
	shared.Sessions.GetOrCreate(int64(sid), 1, false)

	cd, _, h := authorizedClient(t, shared, "c1", 1)
	require.NoError(t, h.Dispatch(encodeJoinFrame(t, int64(sid), 0, false)))

	e := wire.NewEncoder(64)
	e.U8(uint8(MsgSendLevelScript))
	e.U8(1)
	require.NoError(t, e.String("main", maxScriptNameLen))
	e.Uvarint(3)
	e.RawBytes([]byte("lua"))
	e.U8(0)

	require.NoError(t, h.Dispatch(e.Bytes()))

	sess, _ := cd.Session()
	_, scripted := sess.Scripting()
	assert.False(t, scripted, "a rejected signature must not install scripting")
	assert.Empty(t, logEngine.InitCalls)
}

func TestSendLevelScriptInstallsScriptingAndCatchesUpExistingPlayers(t *testing.T) {
	shared := newTestShared(&fakeAuth{})
	logEngine := &scripting.LogEngine{}
	shared.Engine = logEngine

	sid := session.PackID(1, 0)
	shared.Sessions.GetOrCreate(int64(sid), 1, false)

	owner, _, hOwner := authorizedClient(t, shared, "owner", 1)
	require.NoError(t, hOwner.Dispatch(encodeJoinFrame(t, int64(sid), 0, false)))

	_, _, hJoiner := authorizedClient(t, shared, "joiner", 2)
	require.NoError(t, hJoiner.Dispatch(encodeJoinFrame(t, int64(sid), 0, false)))

	e := wire.NewEncoder(64)
	e.U8(uint8(MsgSendLevelScript))
	e.U8(1)
	require.NoError(t, e.String("main", maxScriptNameLen))
	e.Uvarint(3)
	e.RawBytes([]byte("lua"))
	e.U8(0)

	require.NoError(t, hOwner.Dispatch(e.Bytes()))

	sess, ok := owner.Session()
	require.True(t, ok)
	_, scripted := sess.Scripting()
	assert.True(t, scripted)
	require.Len(t, logEngine.InitCalls, 1)
	assert.Equal(t, []byte("lua"), logEngine.InitCalls[0].Source)

	// Both the owner and the pre-existing joiner should receive a
	// catch-up PlayerJoin once scripting activates.
	assert.Len(t, logEngine.EventCalls, 2)
}

func TestOnDisconnectRemovesSessionMembershipAndAccountEntry(t *testing.T) {
	shared := newTestShared(&fakeAuth{})
	cd, _, h := authorizedClient(t, shared, "c1", 1)
	shared.Clients.Replace(1, cd)

	sid := session.PackID(1, 0)
	require.NoError(t, h.Dispatch(encodeJoinFrame(t, int64(sid), 0, false)))

	h.OnDisconnect()

	_, ok := shared.Sessions.Get(int64(sid))
	assert.False(t, ok)
	_, ok = shared.Clients.Upgrade(1)
	assert.False(t, ok)
}
