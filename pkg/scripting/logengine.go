package scripting

import (
	"sync"

	"playrelay/pkg/wire"
)

// LogEngine is an in-memory Engine that records every call instead of
// acting on it, for tests that need to assert a handler invoked the
// scripting hooks without standing up a real interpreter.
type LogEngine struct {
	mu sync.Mutex

	InitCalls      []InitCall
	EventCalls     []EventCall
	HeartbeatCalls []int64

	// InitErr, when non-nil, is returned by every InitScripts call,
	// for exercising the signature-mismatch path.
	InitErr error
}

type InitCall struct {
	SessionID int64
	Source    []byte
}

type EventCall struct {
	SessionID int64
	Event     wire.Event
}

func (e *LogEngine) InitScripts(sessionID int64, source []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.InitCalls = append(e.InitCalls, InitCall{SessionID: sessionID, Source: source})
	return e.InitErr
}

func (e *LogEngine) HandleEvent(sessionID int64, ev wire.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.EventCalls = append(e.EventCalls, EventCall{SessionID: sessionID, Event: ev})
	return nil
}

func (e *LogEngine) Heartbeat(sessionID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.HeartbeatCalls = append(e.HeartbeatCalls, sessionID)
	return nil
}

func (e *LogEngine) MemoryUsage() uint64 { return 0 }

var _ Engine = (*LogEngine)(nil)
