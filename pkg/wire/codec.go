package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Decode/encode errors. These map to the "decode errors" kind in the
// error taxonomy: callers log and drop the offending message, the
// connection stays up.
var (
	ErrTruncated           = errors.New("wire: truncated buffer")
	ErrInvalidDiscriminant = errors.New("wire: invalid discriminant")
	ErrStringTooLong       = errors.New("wire: string exceeds bound")
	ErrInvalidFloat        = errors.New("wire: non-finite float")
	ErrOddRemapLength      = errors.New("wire: remap array length not even")
	ErrTooManyRemaps       = errors.New("wire: remap array exceeds 510 entries")
	ErrUnknownEventType    = errors.New("wire: unknown event type")
	ErrServerOnlyEvent     = errors.New("wire: event is server-only, rejected inbound")
)

// MaxScriptedArgs bounds the Scripted event's argument count: the
// scripting engine's argument vector has a fixed heapless capacity of
// 5, which is also what keeps the argument-type bitmap to a single
// byte on the wire.
const MaxScriptedArgs = 5

// Decoder reads primitive wire values from a byte slice, tracking
// position and returning ErrTruncated instead of panicking on
// short reads.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps b for sequential decoding. b is not copied; callers
// must not mutate it while decoding is in progress.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// Exhausted reports whether the stream has been fully consumed.
func (d *Decoder) Exhausted() bool {
	return d.pos >= len(d.buf)
}

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return ErrTruncated
	}
	return nil
}

// U8 reads a single byte.
func (d *Decoder) U8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

// Bool reads a single byte as a boolean (nonzero == true).
func (d *Decoder) Bool() (bool, error) {
	v, err := d.U8()
	return v != 0, err
}

// U16 reads a little-endian uint16.
func (d *Decoder) U16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

// U32 reads a little-endian uint32.
func (d *Decoder) U32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

// U64 reads a little-endian uint64.
func (d *Decoder) U64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

// I32 reads a little-endian int32.
func (d *Decoder) I32() (int32, error) {
	v, err := d.U32()
	return int32(v), err
}

// F32 reads a little-endian IEEE-754 float32 and rejects non-finite values.
func (d *Decoder) F32() (float32, error) {
	bits, err := d.U32()
	if err != nil {
		return 0, err
	}
	f := math.Float32frombits(bits)
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return 0, ErrInvalidFloat
	}
	return f, nil
}

// Bytes reads n raw bytes.
func (d *Decoder) Bytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	v := d.buf[d.pos : d.pos+n]
	d.pos += n
	return v, nil
}

// Uvarint reads a LEB128-encoded unsigned varint, the same encoding
// binary.Uvarint already implements in the standard library -- reused
// directly rather than duplicated by hand.
func (d *Decoder) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		return 0, ErrTruncated
	}
	d.pos += n
	return v, nil
}

// Varint reads a LEB128 zigzag-encoded signed varint.
func (d *Decoder) Varint() (int64, error) {
	v, n := binary.Varint(d.buf[d.pos:])
	if n <= 0 {
		return 0, ErrTruncated
	}
	d.pos += n
	return v, nil
}

// String reads a length-prefixed (u16) UTF-8 string bounded by maxLen.
func (d *Decoder) String(maxLen int) (string, error) {
	n, err := d.U16()
	if err != nil {
		return "", err
	}
	if int(n) > maxLen {
		return "", fmt.Errorf("%w: %d > %d", ErrStringTooLong, n, maxLen)
	}
	b, err := d.Bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Encoder appends primitive wire values to a growable byte buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder allocates an Encoder with a capacity hint.
func NewEncoder(sizeHint int) *Encoder {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated buffer.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

func (e *Encoder) U8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.U8(1)
	} else {
		e.U8(0)
	}
}

func (e *Encoder) U16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *Encoder) U32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *Encoder) U64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *Encoder) I32(v int32) {
	e.U32(uint32(v))
}

func (e *Encoder) F32(v float32) {
	e.U32(math.Float32bits(v))
}

func (e *Encoder) RawBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *Encoder) Uvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	e.buf = append(e.buf, tmp[:n]...)
}

func (e *Encoder) Varint(v int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	e.buf = append(e.buf, tmp[:n]...)
}

func (e *Encoder) String(s string, maxLen int) error {
	if len(s) > maxLen {
		return fmt.Errorf("%w: %d > %d", ErrStringTooLong, len(s), maxLen)
	}
	e.U16(uint16(len(s)))
	e.buf = append(e.buf, s...)
	return nil
}
