package playerstate

import (
	"math"

	"playrelay/pkg/wire"
)

const (
	variantFull   uint8 = 0
	variantCulled uint8 = 1

	twoPi = 2 * math.Pi
)

// InRange reports whether neighbour has any object (the lone Single,
// or either half of a Dual pair) within viewer's camera disk. Dual
// objects OR across both sub-players, so a 2-player team with only
// one half on screen still counts as visible.
func InRange(viewer CameraRange, neighbour State) bool {
	switch {
	case neighbour.Dual != nil:
		return objectInRange(viewer, neighbour.Dual.P1) || objectInRange(viewer, neighbour.Dual.P2)
	case neighbour.Single != nil:
		return objectInRange(viewer, *neighbour.Single)
	default:
		return false
	}
}

func objectInRange(viewer CameraRange, o ObjectData) bool {
	dx := o.X - viewer.X
	dy := o.Y - viewer.Y
	return dx*dx+dy*dy < viewer.Radius*viewer.Radius
}

// referencePoint picks the position used for bearing-angle
// computation: the lone object, or the first half of a dual pair.
func referencePoint(neighbour State) (x, y float32, ok bool) {
	switch {
	case neighbour.Dual != nil:
		return neighbour.Dual.P1.X, neighbour.Dual.P1.Y, true
	case neighbour.Single != nil:
		return neighbour.Single.X, neighbour.Single.Y, true
	default:
		return 0, 0, false
	}
}

// BearingPercentage computes the angle from viewer's camera center to
// neighbour's reference point, quantized to u16 over [0, 2*pi), and
// returns it as a float32 so it can be dropped straight into the
// State.Percentage wire slot that platformer mode repurposes.
func BearingPercentage(viewer CameraRange, neighbour State) float32 {
	x, y, ok := referencePoint(neighbour)
	if !ok {
		return 0
	}
	angle := math.Atan2(float64(y-viewer.Y), float64(x-viewer.X))
	if angle < 0 {
		angle += twoPi
	}
	quantized := uint16((angle / twoPi) * 65535)
	return float32(quantized)
}

// EncodeNeighbour writes one participant's state into an outbound
// frame from viewer's point of view: a one-byte variant tag (Full or
// Culled) followed by the corresponding payload. In platformer mode
// the percentage field is always replaced with the bearing angle,
// regardless of variant.
func EncodeNeighbour(e *wire.Encoder, viewer CameraRange, neighbour State, platformer bool) {
	visible := InRange(viewer, neighbour)

	out := neighbour
	if platformer {
		out.Percentage = BearingPercentage(viewer, neighbour)
	}

	if visible {
		e.U8(variantFull)
		Encode(e, out)
		return
	}

	e.U8(variantCulled)
	e.I32(out.AccountID)
	e.F32(out.Percentage)
}

// NeighbourVariant is the decoded discriminant of an encoded
// neighbour, used by tests and bridge-side tooling that need to parse
// a frame the server produced.
type NeighbourVariant uint8

const (
	VariantFull   NeighbourVariant = NeighbourVariant(variantFull)
	VariantCulled NeighbourVariant = NeighbourVariant(variantCulled)
)

// DecodedNeighbour is the parsed form of one EncodeNeighbour record.
type DecodedNeighbour struct {
	Variant    NeighbourVariant
	Full       State
	AccountID  int32
	Percentage float32
}

// DecodeNeighbour is the inverse of EncodeNeighbour.
func DecodeNeighbour(d *wire.Decoder) (DecodedNeighbour, error) {
	tag, err := d.U8()
	if err != nil {
		return DecodedNeighbour{}, err
	}
	switch tag {
	case variantFull:
		s, err := Decode(d)
		if err != nil {
			return DecodedNeighbour{}, err
		}
		return DecodedNeighbour{Variant: VariantFull, Full: s}, nil
	case variantCulled:
		acc, err := d.I32()
		if err != nil {
			return DecodedNeighbour{}, err
		}
		pct, err := d.F32()
		if err != nil {
			return DecodedNeighbour{}, err
		}
		return DecodedNeighbour{Variant: VariantCulled, AccountID: acc, Percentage: pct}, nil
	default:
		return DecodedNeighbour{}, wire.ErrInvalidDiscriminant
	}
}
