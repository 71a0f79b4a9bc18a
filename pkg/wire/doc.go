// Package wire implements the binary event codec for player-data frames:
// a closed tagged union of gameplay events identified by a 16-bit type,
// split into an inbound half (client -> server) and an outbound half
// (server -> client).
//
// Values 0x0000-0xEFFF are scripted (user-defined) events forwarded
// opaquely to the scripting engine. Values 0xF000 and above are the
// reserved built-in categories: counter changes, join/leave
// notifications, group spawning/movement, player following, two-player
// linking, switcheroo state, and script-log requests.
//
// Encoding never uses reflection or code generation; every event type
// implements Encode/Decode by hand over a flat byte buffer, matching
// the varint/bitflags discipline described by the protocol.
package wire
