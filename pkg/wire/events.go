package wire

import (
	"errors"
	"math"
)

// ErrVarianceWithoutDelay is returned by NewSpawnGroup when Variance
// is set but Delay is nil; variance only makes sense as jitter on a
// delay.
var ErrVarianceWithoutDelay = errors.New("wire: spawn variance set without delay")

// EventType is the 16-bit discriminant prefixing every event payload
// in the events substream of a PlayerData message.
type EventType uint16

// Built-in event types occupy the reserved range starting at 0xF000.
// Anything below that is a scripted (user-defined) event forwarded
// opaquely to the scripting engine.
const (
	scriptedRangeEnd EventType = 0xF000

	EvCounterChange        EventType = 0xF000
	EvPlayerJoin           EventType = 0xF001
	EvPlayerLeave          EventType = 0xF002
	EvSpawnGroup           EventType = 0xF003
	EvSetItem              EventType = 0xF004
	EvMoveGroup            EventType = 0xF005
	EvMoveGroupAbsolute    EventType = 0xF006
	EvFollowPlayer         EventType = 0xF007
	EvFollowRotation       EventType = 0xF008
	EvTwoPlayerLinkRequest EventType = 0xF009
	EvTwoPlayerUnlink      EventType = 0xF00A
	EvSwitcherooFullState  EventType = 0xF00B
	EvSwitcherooSwitch     EventType = 0xF00C
	EvRequestScriptLogs    EventType = 0xF00D
)

// IsScripted reports whether t falls in the user-defined event range.
func (t EventType) IsScripted() bool {
	return t < scriptedRangeEnd
}

// CounterOp is the raw operation discriminant packed into the low
// byte of a CounterChange payload.
type CounterOp uint8

const (
	CounterSet      CounterOp = 0
	CounterAdd      CounterOp = 1
	CounterMultiply CounterOp = 2
	CounterDivide   CounterOp = 3
)

// Event is implemented by every concrete event payload.
type Event interface {
	Type() EventType
	// EstimateBytes returns a conservative size estimate used to size
	// outbound frame buffers before encoding.
	EstimateBytes() int
	encodePayload(e *Encoder)
}

// Encode writes the type-tagged wire representation of ev: a u16 type
// followed by its payload.
func Encode(ev Event) []byte {
	e := NewEncoder(2 + ev.EstimateBytes())
	e.U16(uint16(ev.Type()))
	ev.encodePayload(e)
	return e.Bytes()
}

// EncodeInto appends ev's type-tagged wire representation to e.
func EncodeInto(e *Encoder, ev Event) {
	e.U16(uint16(ev.Type()))
	ev.encodePayload(e)
}

// CounterChange carries a single trigger-engine mutation: set, add,
// multiply, or divide a session counter by item_id.
//
// Wire layout: 8 bytes, little-endian u64 packed as
// value:32 | item_id:24 | type:8, with type occupying the top byte.
// For Set/Add the value field is a raw i32; for Multiply/Divide it is
// f32 bits.
type CounterChange struct {
	Op       CounterOp
	ItemID   uint32 // 24-bit
	IntValue int32  // valid when Op is Set or Add
	F32Value float32
}

func (CounterChange) Type() EventType { return EvCounterChange }
func (CounterChange) EstimateBytes() int { return 8 }

func (c CounterChange) encodePayload(e *Encoder) {
	var valueBits uint32
	switch c.Op {
	case CounterMultiply, CounterDivide:
		valueBits = floatBits(c.F32Value)
	default:
		valueBits = uint32(c.IntValue)
	}
	packed := uint64(valueBits) | (uint64(c.ItemID&0xFFFFFF) << 32) | (uint64(c.Op) << 56)
	e.U64(packed)
}

func decodeCounterChange(d *Decoder) (CounterChange, error) {
	raw, err := d.U64()
	if err != nil {
		return CounterChange{}, err
	}
	op := CounterOp(raw >> 56)
	if op > CounterDivide {
		return CounterChange{}, ErrInvalidDiscriminant
	}
	itemID := uint32((raw >> 32) & 0xFFFFFF)
	valueBits := uint32(raw)

	c := CounterChange{Op: op, ItemID: itemID}
	switch op {
	case CounterMultiply, CounterDivide:
		f, err := floatFromBits(valueBits)
		if err != nil {
			return CounterChange{}, err
		}
		c.F32Value = f
	default:
		c.IntValue = int32(valueBits)
	}
	return c, nil
}

// PlayerJoin notifies that account id Account joined the session.
type PlayerJoin struct{ Account int32 }

func (PlayerJoin) Type() EventType     { return EvPlayerJoin }
func (PlayerJoin) EstimateBytes() int  { return 4 }
func (p PlayerJoin) encodePayload(e *Encoder) { e.I32(p.Account) }

func decodePlayerJoin(d *Decoder) (PlayerJoin, error) {
	v, err := d.I32()
	return PlayerJoin{Account: v}, err
}

// PlayerLeave notifies that account id Account left the session.
type PlayerLeave struct{ Account int32 }

func (PlayerLeave) Type() EventType      { return EvPlayerLeave }
func (PlayerLeave) EstimateBytes() int   { return 4 }
func (p PlayerLeave) encodePayload(e *Encoder) { e.I32(p.Account) }

func decodePlayerLeave(d *Decoder) (PlayerLeave, error) {
	v, err := d.I32()
	return PlayerLeave{Account: v}, err
}

// TwoPlayerUnlink notifies the recipient that PlayerID's 2-player link
// was dissolved.
type TwoPlayerUnlink struct{ PlayerID int32 }

func (TwoPlayerUnlink) Type() EventType     { return EvTwoPlayerUnlink }
func (TwoPlayerUnlink) EstimateBytes() int  { return 4 }
func (t TwoPlayerUnlink) encodePayload(e *Encoder) { e.I32(t.PlayerID) }

func decodeTwoPlayerUnlink(d *Decoder) (TwoPlayerUnlink, error) {
	v, err := d.I32()
	return TwoPlayerUnlink{PlayerID: v}, err
}

// TwoPlayerLinkRequest asks PlayerID to link as the complementary slot
// of a 2-player (Player1 indicates which half the sender occupies).
type TwoPlayerLinkRequest struct {
	PlayerID int32
	Player1  bool
}

func (TwoPlayerLinkRequest) Type() EventType    { return EvTwoPlayerLinkRequest }
func (TwoPlayerLinkRequest) EstimateBytes() int { return 5 }
func (t TwoPlayerLinkRequest) encodePayload(e *Encoder) {
	e.I32(t.PlayerID)
	e.Bool(t.Player1)
}

func decodeTwoPlayerLinkRequest(d *Decoder) (TwoPlayerLinkRequest, error) {
	pid, err := d.I32()
	if err != nil {
		return TwoPlayerLinkRequest{}, err
	}
	p1, err := d.Bool()
	if err != nil {
		return TwoPlayerLinkRequest{}, err
	}
	return TwoPlayerLinkRequest{PlayerID: pid, Player1: p1}, nil
}

// SetItem overwrites counter ItemID to Value directly (used instead of
// CounterChange(Set) as the outbound representation when a level
// script is active).
type SetItem struct {
	ItemID uint32
	Value  int32
}

func (SetItem) Type() EventType    { return EvSetItem }
func (SetItem) EstimateBytes() int { return 10 }
func (s SetItem) encodePayload(e *Encoder) {
	e.Uvarint(uint64(s.ItemID))
	e.Varint(int64(s.Value))
}

func decodeSetItem(d *Decoder) (SetItem, error) {
	id, err := d.Uvarint()
	if err != nil {
		return SetItem{}, err
	}
	v, err := d.Varint()
	if err != nil {
		return SetItem{}, err
	}
	return SetItem{ItemID: uint32(id), Value: int32(v)}, nil
}

const (
	spawnFlagHasDelay    = 1 << 0
	spawnFlagHasVariance = 1 << 1
	spawnFlagOrdered     = 1 << 2
	spawnFlagHasRemaps   = 1 << 3
)

// SpawnGroup instructs clients to spawn a previously defined object
// group, with optional jittered delay, ordering, and id remapping.
type SpawnGroup struct {
	GroupID  uint32
	Delay    *float32
	Variance *float32 // only meaningful when Delay is set
	Ordered  bool
	Remaps   []uint32 // even-length: pairs of (from, to)
}

func (SpawnGroup) Type() EventType { return EvSpawnGroup }

func (s SpawnGroup) EstimateBytes() int {
	n := 1 + 5 // flags + group varuint (worst case)
	if s.Delay != nil {
		n += 4
	}
	if s.Variance != nil {
		n += 4
	}
	if len(s.Remaps) > 0 {
		n += 1 + len(s.Remaps)*5
	}
	return n
}

func (s SpawnGroup) encodePayload(e *Encoder) {
	var flags uint8
	if s.Delay != nil {
		flags |= spawnFlagHasDelay
	}
	if s.Variance != nil {
		flags |= spawnFlagHasVariance
	}
	if s.Ordered {
		flags |= spawnFlagOrdered
	}
	if len(s.Remaps) > 0 {
		flags |= spawnFlagHasRemaps
	}
	e.U8(flags)
	e.Uvarint(uint64(s.GroupID))
	if s.Delay != nil {
		e.F32(*s.Delay)
	}
	if s.Variance != nil {
		e.F32(*s.Variance)
	}
	if len(s.Remaps) > 0 {
		e.U8(uint8(len(s.Remaps) / 2))
		for _, v := range s.Remaps {
			e.Uvarint(uint64(v))
		}
	}
}

// maxRemaps bounds the remap array at 510 entries (255 pairs), since
// the pair count is wire-encoded as a single u8.
const maxRemaps = 510

// NewSpawnGroup validates the remap invariant (even length, and no
// more than 255 pairs) at construction time, rejecting a bad remap
// array as an encode-time error rather than letting it reach the wire
// and silently wrap the pair-count byte.
func NewSpawnGroup(groupID uint32, delay, variance *float32, ordered bool, remaps []uint32) (SpawnGroup, error) {
	if len(remaps)%2 != 0 {
		return SpawnGroup{}, ErrOddRemapLength
	}
	if len(remaps) > maxRemaps {
		return SpawnGroup{}, ErrTooManyRemaps
	}
	if variance != nil && delay == nil {
		return SpawnGroup{}, ErrVarianceWithoutDelay
	}
	return SpawnGroup{GroupID: groupID, Delay: delay, Variance: variance, Ordered: ordered, Remaps: remaps}, nil
}

func decodeSpawnGroup(d *Decoder) (SpawnGroup, error) {
	flags, err := d.U8()
	if err != nil {
		return SpawnGroup{}, err
	}
	groupID, err := d.Uvarint()
	if err != nil {
		return SpawnGroup{}, err
	}
	s := SpawnGroup{GroupID: uint32(groupID), Ordered: flags&spawnFlagOrdered != 0}

	if flags&spawnFlagHasDelay != 0 {
		v, err := d.F32()
		if err != nil {
			return SpawnGroup{}, err
		}
		s.Delay = &v
	} else if flags&spawnFlagHasVariance != 0 {
		return SpawnGroup{}, ErrInvalidDiscriminant
	}
	if flags&spawnFlagHasVariance != 0 {
		v, err := d.F32()
		if err != nil {
			return SpawnGroup{}, err
		}
		s.Variance = &v
	}
	if flags&spawnFlagHasRemaps != 0 {
		pairCount, err := d.U8()
		if err != nil {
			return SpawnGroup{}, err
		}
		s.Remaps = make([]uint32, 0, int(pairCount)*2)
		for i := 0; i < int(pairCount)*2; i++ {
			v, err := d.Uvarint()
			if err != nil {
				return SpawnGroup{}, err
			}
			s.Remaps = append(s.Remaps, uint32(v))
		}
	}
	return s, nil
}

// MoveGroup translates a group of objects by a relative offset.
type MoveGroup struct {
	GroupID uint32
	DX, DY  float32
}

func (MoveGroup) Type() EventType    { return EvMoveGroup }
func (MoveGroup) EstimateBytes() int { return 13 }
func (m MoveGroup) encodePayload(e *Encoder) {
	e.Uvarint(uint64(m.GroupID))
	e.F32(m.DX)
	e.F32(m.DY)
}

func decodeMoveGroup(d *Decoder) (MoveGroup, error) {
	group, err := d.Uvarint()
	if err != nil {
		return MoveGroup{}, err
	}
	dx, err := d.F32()
	if err != nil {
		return MoveGroup{}, err
	}
	dy, err := d.F32()
	if err != nil {
		return MoveGroup{}, err
	}
	return MoveGroup{GroupID: uint32(group), DX: dx, DY: dy}, nil
}

// MoveGroupAbsolute moves a group of objects to an absolute position
// relative to a named center object.
type MoveGroupAbsolute struct {
	GroupID  uint32
	CenterID uint32
	X, Y     float32
}

func (MoveGroupAbsolute) Type() EventType    { return EvMoveGroupAbsolute }
func (MoveGroupAbsolute) EstimateBytes() int { return 18 }
func (m MoveGroupAbsolute) encodePayload(e *Encoder) {
	e.Uvarint(uint64(m.GroupID))
	e.Uvarint(uint64(m.CenterID))
	e.F32(m.X)
	e.F32(m.Y)
}

func decodeMoveGroupAbsolute(d *Decoder) (MoveGroupAbsolute, error) {
	group, err := d.Uvarint()
	if err != nil {
		return MoveGroupAbsolute{}, err
	}
	center, err := d.Uvarint()
	if err != nil {
		return MoveGroupAbsolute{}, err
	}
	x, err := d.F32()
	if err != nil {
		return MoveGroupAbsolute{}, err
	}
	y, err := d.F32()
	if err != nil {
		return MoveGroupAbsolute{}, err
	}
	return MoveGroupAbsolute{GroupID: uint32(group), CenterID: uint32(center), X: x, Y: y}, nil
}

const followHighBitEnable = 1 << 15

// followTarget is the shared payload shape of FollowPlayer and
// FollowRotation: a group id whose high bit doubles as an enable flag,
// an optional center object, and the player id to follow.
type followTarget struct {
	GroupID  uint16 // high bit reserved for Enable
	Enable   bool
	CenterID *uint16
	PlayerID int32
}

func (f followTarget) estimateBytes() int {
	n := 2 + 1 + 4
	if f.CenterID != nil {
		n += 2
	}
	return n
}

func (f followTarget) encode(e *Encoder) {
	group := f.GroupID &^ followHighBitEnable
	if f.Enable {
		group |= followHighBitEnable
	}
	e.U16(group)
	e.Bool(f.CenterID != nil)
	if f.CenterID != nil {
		e.U16(*f.CenterID)
	}
	e.I32(f.PlayerID)
}

func decodeFollowTarget(d *Decoder) (followTarget, error) {
	raw, err := d.U16()
	if err != nil {
		return followTarget{}, err
	}
	hasCenter, err := d.Bool()
	if err != nil {
		return followTarget{}, err
	}
	f := followTarget{
		GroupID: raw &^ followHighBitEnable,
		Enable:  raw&followHighBitEnable != 0,
	}
	if hasCenter {
		c, err := d.U16()
		if err != nil {
			return followTarget{}, err
		}
		f.CenterID = &c
	}
	pid, err := d.I32()
	if err != nil {
		return followTarget{}, err
	}
	f.PlayerID = pid
	return f, nil
}

// FollowPlayer makes GroupID's objects track PlayerID's position.
type FollowPlayer struct{ followTarget }

func (FollowPlayer) Type() EventType       { return EvFollowPlayer }
func (f FollowPlayer) EstimateBytes() int  { return f.followTarget.estimateBytes() }
func (f FollowPlayer) encodePayload(e *Encoder) { f.followTarget.encode(e) }

func decodeFollowPlayer(d *Decoder) (FollowPlayer, error) {
	f, err := decodeFollowTarget(d)
	return FollowPlayer{f}, err
}

// FollowRotation makes GroupID's objects track PlayerID's rotation.
type FollowRotation struct{ followTarget }

func (FollowRotation) Type() EventType       { return EvFollowRotation }
func (f FollowRotation) EstimateBytes() int  { return f.followTarget.estimateBytes() }
func (f FollowRotation) encodePayload(e *Encoder) { f.followTarget.encode(e) }

func decodeFollowRotation(d *Decoder) (FollowRotation, error) {
	f, err := decodeFollowTarget(d)
	return FollowRotation{f}, err
}

// SwitcherooFullState replaces the recipient's full switcheroo state.
type SwitcherooFullState struct {
	Account int32
	State   uint8
}

func (SwitcherooFullState) Type() EventType    { return EvSwitcherooFullState }
func (SwitcherooFullState) EstimateBytes() int { return 5 }
func (s SwitcherooFullState) encodePayload(e *Encoder) {
	e.I32(s.Account)
	e.U8(s.State)
}

func decodeSwitcherooFullState(d *Decoder) (SwitcherooFullState, error) {
	acc, err := d.I32()
	if err != nil {
		return SwitcherooFullState{}, err
	}
	st, err := d.U8()
	if err != nil {
		return SwitcherooFullState{}, err
	}
	return SwitcherooFullState{Account: acc, State: st}, nil
}

// SwitcherooSwitch flips a single switcheroo slot.
type SwitcherooSwitch struct {
	Account int32
	State   uint8
}

func (SwitcherooSwitch) Type() EventType    { return EvSwitcherooSwitch }
func (SwitcherooSwitch) EstimateBytes() int { return 5 }
func (s SwitcherooSwitch) encodePayload(e *Encoder) {
	e.I32(s.Account)
	e.U8(s.State)
}

func decodeSwitcherooSwitch(d *Decoder) (SwitcherooSwitch, error) {
	acc, err := d.I32()
	if err != nil {
		return SwitcherooSwitch{}, err
	}
	st, err := d.U8()
	if err != nil {
		return SwitcherooSwitch{}, err
	}
	return SwitcherooSwitch{Account: acc, State: st}, nil
}

// RequestScriptLogs carries no payload; the session owner asks for
// the accumulated script log buffer.
type RequestScriptLogs struct{}

func (RequestScriptLogs) Type() EventType          { return EvRequestScriptLogs }
func (RequestScriptLogs) EstimateBytes() int       { return 0 }
func (RequestScriptLogs) encodePayload(e *Encoder) {}

func decodeRequestScriptLogs(d *Decoder) (RequestScriptLogs, error) {
	return RequestScriptLogs{}, nil
}

// ScriptedArg is one argument of a Scripted event: either an int32 or
// a float32, distinguished by the bitmap in the payload header.
type ScriptedArg struct {
	IsFloat bool
	Int     int32
	Float   float32
}

// Scripted is a user-defined event in the [0, 0xF000) range, forwarded
// opaquely to the scripting engine without built-in interpretation.
type Scripted struct {
	EventID EventType
	Args    []ScriptedArg
}

func (s Scripted) Type() EventType { return s.EventID }
func (s Scripted) EstimateBytes() int {
	return 2 + len(s.Args)*4
}

// encodePayload writes the argument count, then a bitmap that packs
// each argument's type flag into a single byte,
// MSB-first: argument 0 occupies bit 7, argument 1 bit 6, and so on
// down to argument 7 in bit 0. MaxScriptedArgs caps the argument count
// at 5, so one byte always suffices.
func (s Scripted) encodePayload(e *Encoder) {
	e.U8(uint8(len(s.Args)))
	var bitmap byte
	for i, a := range s.Args {
		if a.IsFloat {
			bitmap |= 1 << uint(7-i)
		}
	}
	e.U8(bitmap)
	for _, a := range s.Args {
		if a.IsFloat {
			e.F32(a.Float)
		} else {
			e.I32(a.Int)
		}
	}
}

func decodeScripted(d *Decoder, id EventType) (Scripted, error) {
	count, err := d.U8()
	if err != nil {
		return Scripted{}, err
	}
	if count > MaxScriptedArgs {
		return Scripted{}, ErrInvalidDiscriminant
	}
	bitmap, err := d.U8()
	if err != nil {
		return Scripted{}, err
	}
	args := make([]ScriptedArg, 0, count)
	for i := 0; i < int(count); i++ {
		isFloat := bitmap&(1<<uint(7-i)) != 0
		if isFloat {
			f, err := d.F32()
			if err != nil {
				return Scripted{}, err
			}
			args = append(args, ScriptedArg{IsFloat: true, Float: f})
		} else {
			v, err := d.I32()
			if err != nil {
				return Scripted{}, err
			}
			args = append(args, ScriptedArg{Int: v})
		}
	}
	return Scripted{EventID: id, Args: args}, nil
}

func floatBits(f float32) uint32 { return math.Float32bits(f) }

func floatFromBits(bits uint32) (float32, error) {
	f := math.Float32frombits(bits)
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return 0, ErrInvalidFloat
	}
	return f, nil
}
