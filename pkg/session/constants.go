package session

import "time"

const (
	// MaxEventCount bounds the number of events (counter-changes plus
	// queued events) drained into a single outbound frame.
	MaxEventCount = 64

	// MaxUnreadCounters bounds a participant's pending counter-change
	// map; excess changes are dropped (the existing entries are kept,
	// new item ids past the bound are simply not admitted).
	MaxUnreadCounters = 1024

	// MaxUnreadEvents bounds a participant's outbound event FIFO;
	// new events past the bound are dropped.
	MaxUnreadEvents = 512

	// MaxScriptLogs bounds a session's script log buffer; oldest
	// entries are dropped first once full.
	MaxScriptLogs = 2048

	// cleanupInterval is not read anywhere: Manager runs no periodic
	// sweep and removes empty sessions through DeleteIfEmpty.
	cleanupInterval = 5 * time.Minute
)
