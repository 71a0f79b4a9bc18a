// Package scripting declares the narrow capability set the core
// invokes the embedded, feature-gated scripting engine through. The
// engine implementation itself is out of scope here; this package
// only pins the contract and ships a no-op stand-in so the rest of the
// module can depend on an interface instead of a concrete engine.
package scripting

import "playrelay/pkg/wire"

// Engine is implemented by the embedded level-scripting runtime. All
// methods must be safe for concurrent use; a session may invoke
// HandleEvent from many connection-handler goroutines at once.
type Engine interface {
	// InitScripts verifies the level script's signature (when
	// verifyScriptSignatures is enabled) and loads it for sessionID.
	// A signature mismatch returns an error; the caller logs and does
	// not activate scripting for that session.
	InitScripts(sessionID int64, source []byte) error

	// HandleEvent forwards one inbound event (built-in or user
	// scripted) to the running script for sessionID.
	HandleEvent(sessionID int64, ev wire.Event) error

	// Heartbeat drives time-based script logic once per tick for
	// every session registered in the manager's heartbeat set.
	Heartbeat(sessionID int64) error

	// MemoryUsage reports the interpreter's current memory footprint
	// in bytes, surfaced through periodic status logging.
	MemoryUsage() uint64
}

// NullEngine is a scripting.Engine that does nothing; sessions created
// without an explicit script behave exactly as if scripting were
// compiled out.
type NullEngine struct{}

func (NullEngine) InitScripts(int64, []byte) error       { return nil }
func (NullEngine) HandleEvent(int64, wire.Event) error   { return nil }
func (NullEngine) Heartbeat(int64) error                 { return nil }
func (NullEngine) MemoryUsage() uint64                   { return 0 }

var _ Engine = NullEngine{}
