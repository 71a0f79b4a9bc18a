package bridge

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playrelay/pkg/clientdata"
	"playrelay/pkg/wire"
)

// wsPipe wraps a net.Pipe in a pair of *websocket.Conn without a real
// HTTP handshake, exercising only the framing gorilla/websocket itself
// implements. It is a test-only shortcut; production dials always go
// through websocket.Dialer.
func wsPipe(t *testing.T) (client, server *websocket.Conn) {
	t.Helper()
	a, b := net.Pipe()
	client = websocket.NewConn(a, false, 4096, 4096)
	server = websocket.NewConn(b, true, 4096, 4096)
	return client, server
}

func TestRoomStoreInsertRemoveGet(t *testing.T) {
	rs := NewRoomStore()
	rs.Insert(7, Room{Passcode: 1234, Owner: 99})

	room, ok := rs.Get(7)
	require.True(t, ok)
	assert.Equal(t, uint32(1234), room.Passcode)
	assert.Equal(t, int32(99), room.Owner)

	rs.Remove(7)
	_, ok = rs.Get(7)
	assert.False(t, ok)
}

func TestUserCacheSetGetVacuum(t *testing.T) {
	uc := NewUserCache()
	uc.Set(1, UserFlags{CanUseVoice: true})
	uc.Set(2, UserFlags{IsBanned: true})
	assert.Equal(t, 2, uc.Len())

	removed := uc.Vacuum(map[int32]struct{}{1: {}})
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, uc.Len())
	_, ok := uc.Get(2)
	assert.False(t, ok)
}

func TestSimpleTokenIssuerValidateMatch(t *testing.T) {
	key := "test-key"
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": float64(42),
		"user_id":    float64(7),
		"username":   "spaceman",
		"roles":      "admin,mod",
	})
	signed, err := tok.SignedString([]byte(key))
	require.NoError(t, err)

	issuer := simpleTokenIssuer{key: key}
	data, err := issuer.ValidateMatch(signed, 42)
	require.NoError(t, err)
	assert.Equal(t, int32(42), data.AccountID)
	assert.Equal(t, int32(7), data.UserID)
	assert.Equal(t, "spaceman", data.Username)
	assert.Equal(t, "admin,mod", data.RolesStr)
}

func TestSimpleTokenIssuerRejectsSpoofedAccount(t *testing.T) {
	key := "test-key"
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": float64(42),
	})
	signed, err := tok.SignedString([]byte(key))
	require.NoError(t, err)

	issuer := simpleTokenIssuer{key: key}
	_, err = issuer.ValidateMatch(signed, 43)
	assert.Error(t, err)
}

func TestSimpleTokenIssuerRejectsWrongKey(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"account_id": float64(1)})
	signed, err := tok.SignedString([]byte("key-a"))
	require.NoError(t, err)

	issuer := simpleTokenIssuer{key: "key-b"}
	_, err = issuer.ValidateMatch(signed, 1)
	assert.Error(t, err)
}

func TestHMACScriptSignerVerify(t *testing.T) {
	key := []byte("shared-secret")
	signer := hmacScriptSigner{key: key}
	content := []byte("spawn_group(1, 2)")

	mac := hmac.New(sha256.New, key)
	mac.Write(content)
	sig := mac.Sum(nil)

	assert.NoError(t, signer.Verify(content, sig))
	assert.Error(t, signer.Verify([]byte("tampered"), sig))
}

func TestClientDispatchLoginOkAuthenticates(t *testing.T) {
	client, server := wsPipe(t)
	defer client.Close()
	defer server.Close()

	c := New("ws://unused", "pw", ServerIdentity{Name: "n1"}, Hooks{})

	msg := LoginOk{
		TokenKey:    "key",
		TokenExpiry: time.Now().Add(time.Hour).Unix(),
		ScriptKey:   "script-key",
		Roles:       []clientdata.Role{{ID: 1, StringID: "admin", CanModerate: true}},
	}
	payload := encodeLoginOkForTest(msg)

	err := c.dispatch(context.Background(), server, payload)
	require.NoError(t, err)
	assert.Equal(t, Authenticated, c.State())
	assert.True(t, c.wasAuthenticated)

	_, ok := c.Issuer()
	assert.True(t, ok)
	roles := c.Roles()
	require.Len(t, roles, 1)
	assert.Equal(t, "admin", roles[0].StringID)
}

func TestClientDispatchRoomCreatedRepliesAck(t *testing.T) {
	client, server := wsPipe(t)
	defer client.Close()
	defer server.Close()

	c := New("ws://unused", "pw", ServerIdentity{}, Hooks{})

	payload := encodeNotifyRoomCreatedForTest(NotifyRoomCreated{RoomID: 5, Passcode: 999, Owner: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.dispatch(context.Background(), server, payload)
	}()

	_, ackBytes, err := client.ReadMessage()
	require.NoError(t, err)
	<-done

	d := wire.NewDecoder(ackBytes)
	tag, err := d.U8()
	require.NoError(t, err)
	assert.Equal(t, msgRoomCreatedAck, tag)

	room, ok := c.Rooms.Get(5)
	require.True(t, ok)
	assert.Equal(t, uint32(999), room.Passcode)
}

func TestClientDispatchUserDataBannedInvokesHook(t *testing.T) {
	_, server := wsPipe(t)
	defer server.Close()

	var banned int32 = -1
	c := New("ws://unused", "pw", ServerIdentity{}, Hooks{
		OnUserBanned: func(accountID int32) { banned = accountID },
	})

	payload := encodeNotifyUserDataForTest(NotifyUserData{AccountID: 11, IsBanned: true})
	require.NoError(t, c.dispatch(context.Background(), server, payload))
	assert.Equal(t, int32(11), banned)

	_, ok := c.Users.Get(11)
	assert.False(t, ok)
}

func TestClientDispatchUserDataCachesFlags(t *testing.T) {
	_, server := wsPipe(t)
	defer server.Close()

	c := New("ws://unused", "pw", ServerIdentity{}, Hooks{})
	payload := encodeNotifyUserDataForTest(NotifyUserData{AccountID: 12, CanUseVoice: true, CanUseQuickChat: true})
	require.NoError(t, c.dispatch(context.Background(), server, payload))

	flags, ok := c.Users.Get(12)
	require.True(t, ok)
	assert.True(t, flags.CanUseVoice)
	assert.True(t, flags.CanUseQuickChat)
}

func TestClientDispatchUnknownTagReturnsError(t *testing.T) {
	_, server := wsPipe(t)
	defer server.Close()

	c := New("ws://unused", "pw", ServerIdentity{}, Hooks{})
	err := c.dispatch(context.Background(), server, []byte{255})
	assert.Error(t, err)
}

// --- test-only encode helpers mirroring the server side of the wire ---

func encodeLoginOkForTest(m LoginOk) []byte {
	e := wire.NewEncoder(64)
	e.U8(msgLoginOk)
	_ = e.String(m.TokenKey, maxTokenLen)
	e.Varint(m.TokenExpiry)
	_ = e.String(m.ScriptKey, maxTokenLen)
	e.Uvarint(uint64(len(m.Roles)))
	for _, r := range m.Roles {
		e.U8(r.ID)
		_ = e.String(r.StringID, maxRoleStrLen)
		e.Bool(r.CanModerate)
	}
	return e.Bytes()
}

func encodeNotifyRoomCreatedForTest(m NotifyRoomCreated) []byte {
	e := wire.NewEncoder(16)
	e.U8(msgNotifyRoomCreated)
	e.U32(m.RoomID)
	e.U32(m.Passcode)
	e.I32(m.Owner)
	return e.Bytes()
}

func encodeNotifyUserDataForTest(m NotifyUserData) []byte {
	e := wire.NewEncoder(16)
	e.U8(msgNotifyUserData)
	e.I32(m.AccountID)
	e.Bool(m.CanUseQuickChat)
	e.Bool(m.CanUseVoice)
	e.Bool(m.IsBanned)
	return e.Bytes()
}
