package handler

import (
	"fmt"
	"time"

	"playrelay/pkg/clientdata"
	"playrelay/pkg/playerstate"
	"playrelay/pkg/session"
	"playrelay/pkg/wire"
)

// MessageType tags the outer per-connection message envelope: a
// binary tagged union dispatched by tag instead of by JSON-RPC method
// name.
type MessageType uint8

const (
	MsgLoginUToken        MessageType = 0
	MsgLoginUTokenAndJoin MessageType = 1
	MsgJoinSession        MessageType = 2
	MsgLeaveSession       MessageType = 3
	MsgPlayerData         MessageType = 4
	MsgUpdateIcons        MessageType = 5
	MsgSendLevelScript    MessageType = 6
)

// Outbound envelope tags.
const (
	OutLoginOk           MessageType = 0x80
	OutLoginFailed       MessageType = 0x81
	OutJoinSessionFailed MessageType = 0x82
	OutPlayerData        MessageType = 0x83
	OutScriptLogs        MessageType = 0x84
)

// LoginFailedReason enumerates why LoginUToken/LoginUTokenAndJoin was
// rejected.
type LoginFailedReason uint8

const (
	ReasonCentralServerUnreachable LoginFailedReason = 0
	ReasonInvalidUserToken         LoginFailedReason = 1
)

func (r LoginFailedReason) String() string {
	switch r {
	case ReasonCentralServerUnreachable:
		return "central server unreachable"
	case ReasonInvalidUserToken:
		return "invalid user token"
	default:
		return "unknown"
	}
}

// JoinSessionFailedReason enumerates why JoinSession was rejected.
type JoinSessionFailedReason uint8

const (
	ReasonInvalidRoom     JoinSessionFailedReason = 0
	ReasonInvalidPasscode JoinSessionFailedReason = 1
)

const (
	maxTokenStrLen   = 4096
	maxUsernameLen   = 64
	maxNameColorLen  = 16
	maxScriptNameLen = 64
	maxScriptBodyLen = 1 << 20
	maxSignatureLen  = 64
	maxMetadataReqs  = 64
	maxInboundEvents = 64
	maxScriptLogMsg  = 256
)

// loginUToken is the common payload of LoginUToken and
// LoginUTokenAndJoin; the combined form additionally carries a
// joinParams.
type loginUToken struct {
	Token            string
	ClaimedAccountID int32
}

func decodeLoginUToken(d *wire.Decoder) (loginUToken, error) {
	var m loginUToken
	var err error
	if m.Token, err = d.String(maxTokenStrLen); err != nil {
		return m, err
	}
	m.ClaimedAccountID, err = d.I32()
	return m, err
}

type joinParams struct {
	SessionID  int64
	Passcode   uint32
	Platformer bool
}

func decodeJoinParams(d *wire.Decoder) (joinParams, error) {
	var m joinParams
	var err error
	raw, err := d.U64()
	if err != nil {
		return m, err
	}
	m.SessionID = int64(raw)
	if m.Passcode, err = d.U32(); err != nil {
		return m, err
	}
	m.Platformer, err = d.Bool()
	return m, err
}

func encodeLoginOk(e *wire.Encoder, tickrate uint16) {
	e.U8(uint8(OutLoginOk))
	e.U16(tickrate)
}

func encodeLoginFailed(e *wire.Encoder, reason LoginFailedReason) {
	e.U8(uint8(OutLoginFailed))
	e.U8(uint8(reason))
}

func encodeJoinSessionFailed(e *wire.Encoder, reason JoinSessionFailedReason) {
	e.U8(uint8(OutJoinSessionFailed))
	e.U8(uint8(reason))
}

// playerDataIn is the decoded inbound PlayerData payload: the sender's
// own state, its camera disk, up to 64 metadata requests (account
// ids) and up to 64 inbound events.
type playerDataIn struct {
	Data     playerstate.State
	Camera   playerstate.CameraRange
	Requests []int32
	Events   []wire.Event
}

func decodePlayerDataIn(d *wire.Decoder) (playerDataIn, error) {
	var m playerDataIn
	var err error
	if m.Data, err = playerstate.Decode(d); err != nil {
		return m, err
	}
	if m.Camera, err = playerstate.DecodeCameraRange(d); err != nil {
		return m, err
	}

	reqCount, err := d.U8()
	if err != nil {
		return m, err
	}
	if int(reqCount) > maxMetadataReqs {
		return m, fmt.Errorf("handler: %d metadata requests exceeds max %d", reqCount, maxMetadataReqs)
	}
	m.Requests = make([]int32, 0, reqCount)
	for i := uint8(0); i < reqCount; i++ {
		id, err := d.I32()
		if err != nil {
			return m, err
		}
		m.Requests = append(m.Requests, id)
	}

	evCount, err := d.U8()
	if err != nil {
		return m, err
	}
	if int(evCount) > maxInboundEvents {
		return m, fmt.Errorf("handler: %d events exceeds max %d", evCount, maxInboundEvents)
	}
	m.Events = make([]wire.Event, 0, evCount)
	for i := uint8(0); i < evCount; i++ {
		ev, err := wire.DecodeInEvent(d)
		if err != nil {
			return m, err
		}
		m.Events = append(m.Events, ev)
	}
	return m, nil
}

// metadataReply is one answer to an explicit metadata request; a
// zero AccountID marks "not found".
type metadataReply struct {
	AccountID int32
	UserID    int32
	Username  string
	Icons     clientdata.Icons
	Roles     []clientdata.Role
	NameColor string
}

func encodeMetadataReply(e *wire.Encoder, m metadataReply) error {
	e.I32(m.AccountID)
	if m.AccountID == 0 {
		return nil
	}
	e.I32(m.UserID)
	if err := e.String(m.Username, maxUsernameLen); err != nil {
		return err
	}
	encodeIcons(e, m.Icons)
	e.U8(uint8(len(m.Roles)))
	for _, r := range m.Roles {
		e.U8(r.ID)
	}
	return e.String(m.NameColor, maxNameColorLen)
}

func encodeIcons(e *wire.Encoder, icons clientdata.Icons) {
	e.U16(uint16(icons.Cube))
	e.U16(uint16(icons.Ship))
	e.U16(uint16(icons.Ball))
	e.U16(uint16(icons.Ufo))
	e.U16(uint16(icons.Wave))
	e.U16(uint16(icons.Robot))
	e.U16(uint16(icons.Spider))
	e.U16(uint16(icons.Color1))
	e.U16(uint16(icons.Color2))
	e.U16(uint16(icons.ColorGlow))
	e.Bool(icons.Glow)
}

func decodeIcons(d *wire.Decoder) (clientdata.Icons, error) {
	var icons clientdata.Icons
	fields := []*int16{
		&icons.Cube, &icons.Ship, &icons.Ball, &icons.Ufo, &icons.Wave,
		&icons.Robot, &icons.Spider, &icons.Color1, &icons.Color2, &icons.ColorGlow,
	}
	for _, f := range fields {
		v, err := d.U16()
		if err != nil {
			return icons, err
		}
		*f = int16(v)
	}
	glow, err := d.Bool()
	if err != nil {
		return icons, err
	}
	icons.Glow = glow
	return icons, nil
}

// encodeScriptLogs writes the OutScriptLogs reply: every log line
// stamped with elapsed seconds since the session's creation, followed
// by the scripting engine's current memory footprint.
func encodeScriptLogs(e *wire.Encoder, logs []session.ScriptLog, createdAt time.Time, ramUsage uint64) error {
	e.U8(uint8(OutScriptLogs))
	e.Uvarint(uint64(len(logs)))
	for _, l := range logs {
		e.F32(float32(l.At.Sub(createdAt).Seconds()))
		if err := e.String(l.Message, maxScriptLogMsg); err != nil {
			return err
		}
	}
	e.U64(ramUsage)
	return nil
}

type levelScript struct {
	Name      string
	Content   []byte
	Signature []byte
}

func decodeSendLevelScript(d *wire.Decoder) ([]levelScript, error) {
	n, err := d.U8()
	if err != nil {
		return nil, err
	}
	scripts := make([]levelScript, 0, n)
	for i := uint8(0); i < n; i++ {
		var s levelScript
		if s.Name, err = d.String(maxScriptNameLen); err != nil {
			return nil, err
		}
		bodyLen, err := d.Uvarint()
		if err != nil {
			return nil, err
		}
		if bodyLen > maxScriptBodyLen {
			return nil, fmt.Errorf("handler: script %q body %d exceeds max %d", s.Name, bodyLen, maxScriptBodyLen)
		}
		if s.Content, err = d.Bytes(int(bodyLen)); err != nil {
			return nil, err
		}
		sigLen, err := d.U8()
		if err != nil {
			return nil, err
		}
		if int(sigLen) > maxSignatureLen {
			return nil, fmt.Errorf("handler: script %q signature %d exceeds max %d", s.Name, sigLen, maxSignatureLen)
		}
		if s.Signature, err = d.Bytes(int(sigLen)); err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}
