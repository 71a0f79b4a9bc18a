package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTripOut(t *testing.T, ev Event) Event {
	t.Helper()
	buf := Encode(ev)
	d := NewDecoder(buf)
	got, err := DecodeOutEvent(d)
	require.NoError(t, err)
	assert.True(t, d.Exhausted())
	return got
}

func TestCounterChangeRoundTrip(t *testing.T) {
	cases := []CounterChange{
		{Op: CounterSet, ItemID: 42, IntValue: -7},
		{Op: CounterAdd, ItemID: 0xFFFFFF, IntValue: 1},
		{Op: CounterMultiply, ItemID: 1, F32Value: 2.5},
		{Op: CounterDivide, ItemID: 1, F32Value: 0.5},
	}
	for _, c := range cases {
		got := roundTripOut(t, c)
		assert.Equal(t, c, got)
	}
}

func TestCounterChangeWireLayout(t *testing.T) {
	c := CounterChange{Op: CounterSet, ItemID: 7, IntValue: 3}
	buf := Encode(c)
	// buf: type(2) | packed u64(8), little-endian: value:32 | item_id:24 | type:8
	payload := buf[2:]
	assert.Equal(t, []byte{0x03, 0x00, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00}, payload)
}

func TestCounterChangeRejectsNonFiniteFloat(t *testing.T) {
	c := CounterChange{Op: CounterMultiply, ItemID: 1, F32Value: float32(posInf())}
	buf := Encode(c)
	d := NewDecoder(buf)
	_, err := DecodeOutEvent(d)
	assert.ErrorIs(t, err, ErrInvalidFloat)
}

func posInf() float64 {
	var zero float64
	return 1 / zero
}

func TestPlayerJoinLeaveRoundTrip(t *testing.T) {
	j := PlayerJoin{Account: 1234}
	assert.Equal(t, j, roundTripOut(t, j))

	l := PlayerLeave{Account: -1}
	assert.Equal(t, l, roundTripOut(t, l))
}

func TestTwoPlayerEventsRoundTrip(t *testing.T) {
	req := TwoPlayerLinkRequest{PlayerID: 55, Player1: true}
	assert.Equal(t, req, roundTripOut(t, req))

	unlink := TwoPlayerUnlink{PlayerID: 99}
	assert.Equal(t, unlink, roundTripOut(t, unlink))
}

func TestSetItemRoundTrip(t *testing.T) {
	s := SetItem{ItemID: 7, Value: -123456}
	assert.Equal(t, s, roundTripOut(t, s))
}

func TestSpawnGroupRoundTrip(t *testing.T) {
	delay := float32(1.5)
	variance := float32(0.25)

	s, err := NewSpawnGroup(10, &delay, &variance, true, []uint32{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, s, roundTripOut(t, s))

	bare, err := NewSpawnGroup(11, nil, nil, false, nil)
	require.NoError(t, err)
	assert.Equal(t, bare, roundTripOut(t, bare))
}

func TestSpawnGroupRejectsOddRemaps(t *testing.T) {
	_, err := NewSpawnGroup(1, nil, nil, false, []uint32{1, 2, 3})
	assert.ErrorIs(t, err, ErrOddRemapLength)
}

func TestSpawnGroupRejectsVarianceWithoutDelay(t *testing.T) {
	variance := float32(0.1)
	_, err := NewSpawnGroup(1, nil, &variance, false, nil)
	assert.ErrorIs(t, err, ErrVarianceWithoutDelay)
}

func TestSpawnGroupRejectsTooManyRemaps(t *testing.T) {
	remaps := make([]uint32, maxRemaps+2)
	_, err := NewSpawnGroup(1, nil, nil, false, remaps)
	assert.ErrorIs(t, err, ErrTooManyRemaps)
}

func TestMoveGroupRoundTrip(t *testing.T) {
	m := MoveGroup{GroupID: 3, DX: 1.5, DY: -2.5}
	assert.Equal(t, m, roundTripOut(t, m))

	ma := MoveGroupAbsolute{GroupID: 3, CenterID: 9, X: 10, Y: -10}
	assert.Equal(t, ma, roundTripOut(t, ma))
}

func TestFollowEventsRoundTrip(t *testing.T) {
	center := uint16(5)
	fp := FollowPlayer{followTarget{GroupID: 20, Enable: true, CenterID: &center, PlayerID: 7}}
	assert.Equal(t, fp, roundTripOut(t, fp))

	fr := FollowRotation{followTarget{GroupID: 21, Enable: false, PlayerID: -3}}
	assert.Equal(t, fr, roundTripOut(t, fr))
}

func TestSwitcherooRoundTrip(t *testing.T) {
	full := SwitcherooFullState{Account: 1, State: 0xAB}
	assert.Equal(t, full, roundTripOut(t, full))

	sw := SwitcherooSwitch{Account: 2, State: 1}
	assert.Equal(t, sw, roundTripOut(t, sw))
}

func TestRequestScriptLogsRoundTrip(t *testing.T) {
	r := RequestScriptLogs{}
	assert.Equal(t, r, roundTripOut(t, r))
}

func TestScriptedRoundTrip(t *testing.T) {
	s := Scripted{
		EventID: EventType(0x1234),
		Args: []ScriptedArg{
			{Int: 1},
			{IsFloat: true, Float: 3.25},
			{Int: -5},
		},
	}
	got := roundTripOut(t, s)
	assert.Equal(t, s, got)
}

func TestScriptedManyArgsBitmap(t *testing.T) {
	args := make([]ScriptedArg, MaxScriptedArgs)
	for i := range args {
		if i%2 == 0 {
			args[i] = ScriptedArg{IsFloat: true, Float: float32(i)}
		} else {
			args[i] = ScriptedArg{Int: int32(i)}
		}
	}
	s := Scripted{EventID: EventType(1), Args: args}
	got := roundTripOut(t, s)
	assert.Equal(t, s, got)
}

func TestScriptedArgBitmapIsMSBFirst(t *testing.T) {
	// Only arg 0 is a float, so only bit 7 (MSB) of the bitmap byte
	// should be set.
	s := Scripted{
		EventID: EventType(1),
		Args: []ScriptedArg{
			{IsFloat: true, Float: 1},
			{Int: 2},
			{Int: 3},
		},
	}
	buf := Encode(s)
	// buf: type(2) | count(1) | bitmap(1) | args...
	bitmap := buf[3]
	assert.Equal(t, byte(0x80), bitmap)
}

func TestScriptedRejectsTooManyArgs(t *testing.T) {
	d := NewDecoder([]byte{byte(MaxScriptedArgs + 1), 0})
	_, err := decodeScripted(d, EventType(1))
	assert.ErrorIs(t, err, ErrInvalidDiscriminant)
}

func TestDecodeInEventRejectsServerOnly(t *testing.T) {
	ev := PlayerJoin{Account: 1}
	buf := Encode(ev)
	d := NewDecoder(buf)
	_, err := DecodeInEvent(d)
	assert.ErrorIs(t, err, ErrServerOnlyEvent)
}

func TestDecodeInEventAllowsCounterChange(t *testing.T) {
	ev := CounterChange{Op: CounterAdd, ItemID: 1, IntValue: 1}
	buf := Encode(ev)
	d := NewDecoder(buf)
	got, err := DecodeInEvent(d)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestDecodeTruncatedBuffer(t *testing.T) {
	buf := Encode(PlayerJoin{Account: 1})
	d := NewDecoder(buf[:len(buf)-2])
	_, err := DecodeOutEvent(d)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeUnknownBuiltinType(t *testing.T) {
	e := NewEncoder(4)
	e.U16(0xFFFF)
	e.U32(0)
	d := NewDecoder(e.Bytes())
	_, err := DecodeOutEvent(d)
	assert.ErrorIs(t, err, ErrUnknownEventType)
}
