package wire

// DecodeOutEvent reads one type-tagged event from d without any
// direction gating. It is used by tests that parse frames the server
// itself produced; the live server never decodes its own outbound
// traffic.
func DecodeOutEvent(d *Decoder) (Event, error) {
	raw, err := d.U16()
	if err != nil {
		return nil, err
	}
	t := EventType(raw)

	if t.IsScripted() {
		return decodeScripted(d, t)
	}

	switch t {
	case EvCounterChange:
		return decodeCounterChange(d)
	case EvPlayerJoin:
		return decodePlayerJoin(d)
	case EvPlayerLeave:
		return decodePlayerLeave(d)
	case EvSpawnGroup:
		return decodeSpawnGroup(d)
	case EvSetItem:
		return decodeSetItem(d)
	case EvMoveGroup:
		return decodeMoveGroup(d)
	case EvMoveGroupAbsolute:
		return decodeMoveGroupAbsolute(d)
	case EvFollowPlayer:
		return decodeFollowPlayer(d)
	case EvFollowRotation:
		return decodeFollowRotation(d)
	case EvTwoPlayerLinkRequest:
		return decodeTwoPlayerLinkRequest(d)
	case EvTwoPlayerUnlink:
		return decodeTwoPlayerUnlink(d)
	case EvSwitcherooFullState:
		return decodeSwitcherooFullState(d)
	case EvSwitcherooSwitch:
		return decodeSwitcherooSwitch(d)
	case EvRequestScriptLogs:
		return decodeRequestScriptLogs(d)
	default:
		return nil, ErrUnknownEventType
	}
}

// EncodeOutEvent writes any built-in or scripted event in its
// type-tagged wire form. Encode (package-level) already does this for
// a single event; EncodeOutEvent exists so callers can append several
// events into one shared Encoder when building a PlayerData frame.
func EncodeOutEvent(e *Encoder, ev Event) {
	EncodeInto(e, ev)
}
