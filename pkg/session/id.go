package session

// ID is a 64-bit packed session identifier: the high 32 bits hold the
// level id, the low 32 bits the room id. A room id of zero means a
// public session with no owning room.
type ID int64

// PackID combines a level id and room id into a session ID, the form
// every JoinSession request and bridge room notification carries.
func PackID(levelID, roomID uint32) ID {
	return ID(int64(levelID)<<32 | int64(roomID))
}

// LevelID returns the high 32 bits of a packed session ID.
func (id ID) LevelID() uint32 {
	return uint32(int64(id) >> 32)
}

// RoomID returns the low 32 bits of a packed session ID. Zero means
// the session is public and has no backing room.
func (id ID) RoomID() uint32 {
	return uint32(int64(id) & 0xFFFFFFFF)
}
