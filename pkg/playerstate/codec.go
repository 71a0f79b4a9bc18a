package playerstate

import (
	"playrelay/pkg/wire"
)

const (
	objFlagHasPhysics = 1 << 7 // top bit of the wire flags byte, stripped before storing ObjectFlags
	dualFlagBit       = 1 << 0 // state.flags bit marking Dual vs Single object data
)

func encodeObject(e *wire.Encoder, o ObjectData) {
	e.F32(o.X)
	e.F32(o.Y)
	e.F32(o.Rotation)
	e.U8(o.IconType)
	flags := uint8(o.Flags)
	if o.Physics != nil {
		flags |= objFlagHasPhysics
	}
	e.U8(flags)
	if o.Physics != nil {
		e.F32(o.Physics.XVelocity)
		e.F32(o.Physics.YVelocity)
		e.F32(o.Physics.Gravity)
	}
}

func decodeObject(d *wire.Decoder) (ObjectData, error) {
	var o ObjectData
	var err error
	if o.X, err = d.F32(); err != nil {
		return o, err
	}
	if o.Y, err = d.F32(); err != nil {
		return o, err
	}
	if o.Rotation, err = d.F32(); err != nil {
		return o, err
	}
	if o.IconType, err = d.U8(); err != nil {
		return o, err
	}
	rawFlags, err := d.U8()
	if err != nil {
		return o, err
	}
	o.Flags = ObjectFlags(rawFlags &^ objFlagHasPhysics)
	if rawFlags&objFlagHasPhysics != 0 {
		p := &Physics{}
		if p.XVelocity, err = d.F32(); err != nil {
			return o, err
		}
		if p.YVelocity, err = d.F32(); err != nil {
			return o, err
		}
		if p.Gravity, err = d.F32(); err != nil {
			return o, err
		}
		o.Physics = p
	}
	return o, nil
}

// Encode writes s's wire representation: account id, timestamp, frame
// number, death count, percentage, a flags byte whose bit 0 selects
// Single vs Dual, then the object payload(s).
func Encode(e *wire.Encoder, s State) {
	e.I32(s.AccountID)
	e.F32(s.Timestamp)
	e.U32(s.Frame)
	e.U16(s.DeathCount)
	e.F32(s.Percentage)

	var flags uint8
	if s.Dual != nil {
		flags |= dualFlagBit
	}
	e.U8(flags)

	if s.Dual != nil {
		encodeObject(e, s.Dual.P1)
		encodeObject(e, s.Dual.P2)
	} else if s.Single != nil {
		encodeObject(e, *s.Single)
	}
}

// Decode reads a State from d, the inverse of Encode.
func Decode(d *wire.Decoder) (State, error) {
	var s State
	var err error
	if s.AccountID, err = d.I32(); err != nil {
		return s, err
	}
	if s.Timestamp, err = d.F32(); err != nil {
		return s, err
	}
	if s.Frame, err = d.U32(); err != nil {
		return s, err
	}
	if s.DeathCount, err = d.U16(); err != nil {
		return s, err
	}
	if s.Percentage, err = d.F32(); err != nil {
		return s, err
	}
	flags, err := d.U8()
	if err != nil {
		return s, err
	}

	if flags&dualFlagBit != 0 {
		p1, err := decodeObject(d)
		if err != nil {
			return s, err
		}
		p2, err := decodeObject(d)
		if err != nil {
			return s, err
		}
		s.Dual = &DualObjectData{P1: p1, P2: p2}
	} else {
		obj, err := decodeObject(d)
		if err != nil {
			return s, err
		}
		s.Single = &obj
	}
	return s, nil
}

// DecodeCameraRange reads the (x, y, radius) disk that precedes the
// object list in a PlayerData message.
func DecodeCameraRange(d *wire.Decoder) (CameraRange, error) {
	var c CameraRange
	var err error
	if c.X, err = d.F32(); err != nil {
		return c, err
	}
	if c.Y, err = d.F32(); err != nil {
		return c, err
	}
	if c.Radius, err = d.F32(); err != nil {
		return c, err
	}
	return c, nil
}

func EncodeCameraRange(e *wire.Encoder, c CameraRange) {
	e.F32(c.X)
	e.F32(c.Y)
	e.F32(c.Radius)
}
