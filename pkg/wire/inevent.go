package wire

// inboundAllowed is the closed set of built-in event types a client is
// permitted to send. Everything else in the built-in range is
// server-only and rejected with ErrServerOnlyEvent; scripted events
// (below scriptedRangeEnd) are always allowed through.
var inboundAllowed = map[EventType]bool{
	EvCounterChange:        true,
	EvTwoPlayerLinkRequest: true,
	EvTwoPlayerUnlink:      true,
	EvRequestScriptLogs:    true,
}

// DecodeInEvent reads one type-tagged event from d, enforcing the
// inbound allow-list for built-in event types. Scripted events always
// pass through undecoded into their raw argument form.
func DecodeInEvent(d *Decoder) (Event, error) {
	raw, err := d.U16()
	if err != nil {
		return nil, err
	}
	t := EventType(raw)

	if t.IsScripted() {
		return decodeScripted(d, t)
	}
	if !inboundAllowed[t] {
		return nil, ErrServerOnlyEvent
	}

	switch t {
	case EvCounterChange:
		return decodeCounterChange(d)
	case EvTwoPlayerLinkRequest:
		return decodeTwoPlayerLinkRequest(d)
	case EvTwoPlayerUnlink:
		return decodeTwoPlayerUnlink(d)
	case EvRequestScriptLogs:
		return decodeRequestScriptLogs(d)
	default:
		return nil, ErrUnknownEventType
	}
}
