package bridge

import (
	"fmt"

	"playrelay/pkg/clientdata"
	"playrelay/pkg/wire"
)

// Message tags for the central-server control channel. This is a
// small closed protocol private to the bridge link; it shares the
// varint/string encoding discipline of pkg/wire but not its event
// type space, since the two channels never share a connection.
const (
	msgLoginSrv          uint8 = 0
	msgLoginOk           uint8 = 1
	msgLoginFailed       uint8 = 2
	msgNotifyRoomCreated uint8 = 3
	msgRoomCreatedAck    uint8 = 4
	msgNotifyRoomDeleted uint8 = 5
	msgNotifyUserData    uint8 = 6
)

const (
	maxPasswordLen = 256
	maxIdentityLen = 128
	maxTokenLen    = 4096
	maxReasonLen   = 512
	maxRoleStrLen  = 64
)

// LoginSrv is the first frame sent on every new bridge connection.
type LoginSrv struct {
	Password string
	Identity ServerIdentity
}

func encodeLoginSrv(m LoginSrv) ([]byte, error) {
	e := wire.NewEncoder(64)
	e.U8(msgLoginSrv)
	if err := e.String(m.Password, maxPasswordLen); err != nil {
		return nil, err
	}
	if err := e.String(m.Identity.Name, maxIdentityLen); err != nil {
		return nil, err
	}
	if err := e.String(m.Identity.StringID, maxIdentityLen); err != nil {
		return nil, err
	}
	if err := e.String(m.Identity.Region, maxIdentityLen); err != nil {
		return nil, err
	}
	if err := e.String(m.Identity.Address, maxIdentityLen); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// LoginOk installs a new token issuer, script signer key and role
// table on successful authentication.
type LoginOk struct {
	TokenKey    string
	TokenExpiry int64
	ScriptKey   string
	Roles       []clientdata.Role
}

func decodeLoginOk(d *wire.Decoder) (LoginOk, error) {
	var m LoginOk
	var err error
	if m.TokenKey, err = d.String(maxTokenLen); err != nil {
		return m, err
	}
	if m.TokenExpiry, err = d.Varint(); err != nil {
		return m, err
	}
	if m.ScriptKey, err = d.String(maxTokenLen); err != nil {
		return m, err
	}
	n, err := d.Uvarint()
	if err != nil {
		return m, err
	}
	roles := make([]clientdata.Role, 0, n)
	for i := uint64(0); i < n; i++ {
		id, err := d.U8()
		if err != nil {
			return m, err
		}
		strID, err := d.String(maxRoleStrLen)
		if err != nil {
			return m, err
		}
		mod, err := d.Bool()
		if err != nil {
			return m, err
		}
		roles = append(roles, clientdata.Role{ID: id, StringID: strID, CanModerate: mod})
	}
	m.Roles = roles
	return m, nil
}

// LoginFailed carries a human-readable rejection reason.
type LoginFailed struct {
	Reason string
}

func decodeLoginFailed(d *wire.Decoder) (LoginFailed, error) {
	reason, err := d.String(maxReasonLen)
	return LoginFailed{Reason: reason}, err
}

// NotifyRoomCreated announces a new authoritative room.
type NotifyRoomCreated struct {
	RoomID   uint32
	Passcode uint32
	Owner    int32
}

func decodeNotifyRoomCreated(d *wire.Decoder) (NotifyRoomCreated, error) {
	var m NotifyRoomCreated
	roomID, err := d.U32()
	if err != nil {
		return m, err
	}
	passcode, err := d.U32()
	if err != nil {
		return m, err
	}
	owner, err := d.I32()
	if err != nil {
		return m, err
	}
	return NotifyRoomCreated{RoomID: roomID, Passcode: passcode, Owner: owner}, nil
}

// RoomCreatedAck is sent back once a created room has been cached
// locally, so the central server knows this node is ready to host it.
type RoomCreatedAck struct {
	RoomID uint32
}

func encodeRoomCreatedAck(m RoomCreatedAck) []byte {
	e := wire.NewEncoder(8)
	e.U8(msgRoomCreatedAck)
	e.U32(m.RoomID)
	return e.Bytes()
}

// NotifyRoomDeleted announces that a room no longer exists.
type NotifyRoomDeleted struct {
	RoomID uint32
}

func decodeNotifyRoomDeleted(d *wire.Decoder) (NotifyRoomDeleted, error) {
	roomID, err := d.U32()
	return NotifyRoomDeleted{RoomID: roomID}, err
}

// NotifyUserData pushes down moderation flags for one account.
type NotifyUserData struct {
	AccountID       int32
	CanUseQuickChat bool
	CanUseVoice     bool
	IsBanned        bool
}

func decodeNotifyUserData(d *wire.Decoder) (NotifyUserData, error) {
	var m NotifyUserData
	accountID, err := d.I32()
	if err != nil {
		return m, err
	}
	quickChat, err := d.Bool()
	if err != nil {
		return m, err
	}
	voice, err := d.Bool()
	if err != nil {
		return m, err
	}
	banned, err := d.Bool()
	if err != nil {
		return m, err
	}
	return NotifyUserData{AccountID: accountID, CanUseQuickChat: quickChat, CanUseVoice: voice, IsBanned: banned}, nil
}

// errUnknownMessage reports a tag this version of the bridge does not
// understand; the caller drops the frame and keeps the connection.
type errUnknownMessage struct{ tag uint8 }

func (e errUnknownMessage) Error() string {
	return fmt.Sprintf("bridge: unknown message tag %d", e.tag)
}
