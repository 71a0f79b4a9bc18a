// Package handler implements the per-client message-processing state
// machine: authentication, session join/leave, per-frame player-data
// fan-out with camera-range visibility culling, and the built-in
// event side effects (counter changes, two-player linking, script log
// requests). It is the core of the relay, structured the way the
// teacher's pkg/server package structures its own RPC dispatch:
// a MessageType-keyed table of one handler function per inbound
// message kind.
package handler
