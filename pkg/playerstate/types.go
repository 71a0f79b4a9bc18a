package playerstate

// ObjectFlags packs the small set of boolean per-object attributes
// that ride alongside position/rotation on the wire.
type ObjectFlags uint8

const (
	FlagVisible ObjectFlags = 1 << iota
	FlagUpsideDown
	FlagMini
	FlagGrounded
	FlagStationary
	FlagRotationLocked
	FlagDashing
	FlagFalling
)

// Physics is the optional extended physics sub-record attached to an
// object when the level requires higher-fidelity replay (e.g. a
// swing/UFO segment with variable gravity). Present only when a
// PlayerData frame's per-object "has physics" flag is set.
type Physics struct {
	XVelocity float32
	YVelocity float32
	Gravity   float32
}

// ObjectData is one physical object's position/orientation/visual
// state, decoded verbatim from the wire; it is the unit the visibility
// predicate tests and re-encodes.
type ObjectData struct {
	X, Y     float32
	Rotation float32
	IconType uint8
	Flags    ObjectFlags
	Physics  *Physics
}

// Is reports whether flag f is set, without exposing the raw bitmask
// to callers that only care about one flag.
func (o ObjectData) Is(f ObjectFlags) bool {
	return o.Flags&f != 0
}

// State is the decoded form of a single PlayerData frame: either a
// lone object (Single) or a linked pair (Dual, for 2-player mode).
type State struct {
	AccountID  int32
	Timestamp  float32
	Frame      uint32
	DeathCount uint16
	Percentage float32 // overwritten with a bearing angle on cull-encode in platformer mode
	Single     *ObjectData
	Dual       *DualObjectData
}

// DualObjectData is the linked 2-player object pair; P2 is the
// follower half.
type DualObjectData struct {
	P1, P2 ObjectData
}

// CameraRange is the viewer-reported visibility disk: PlayerData
// carries one per frame, used to cull every encoded neighbour.
type CameraRange struct {
	X, Y   float32
	Radius float32
}
